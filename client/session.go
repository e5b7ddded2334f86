package client

import (
	"fmt"
	"net"
	"time"

	"pgv2/charset"
	"pgv2/host"
	"pgv2/pgwire"
	"pgv2/version"
)

// Session is a live, authenticated, protocol-ready connection. It is never
// handed to a caller before the server has confirmed readiness and any role
// requirement has been checked.
type Session struct {
	conn net.Conn
	r    *pgwire.Reader
	w    *pgwire.Writer
	spec host.Spec

	dialer         Dialer
	connectTimeout time.Duration

	// Negotiated session facts, owned by the connection attempt until it
	// succeeds.
	ServerVersion version.Server
	Encoding      *charset.Charset
	StdStrings    bool // server treats string literals as standard-conforming
	BackendPID    int32
	SecretKey     int32
	Warnings      []string
}

func newSession(conn net.Conn, spec host.Spec, dialer Dialer, connectTimeout time.Duration) *Session {
	return &Session{
		conn:           conn,
		r:              pgwire.NewReader(conn),
		w:              pgwire.NewWriter(conn),
		spec:           spec,
		dialer:         dialer,
		connectTimeout: connectTimeout,
		Encoding:       charset.SQLASCII,
	}
}

// Host returns the candidate this session is connected to.
func (s *Session) Host() host.Spec {
	return s.spec
}

// Close sends the terminate message on a best-effort basis and closes the
// stream.
func (s *Session) Close() error {
	if err := s.w.WriteTerminate(); err == nil {
		s.w.Flush()
	}
	return s.conn.Close()
}

// Cancel asks the server to abandon whatever the session is currently
// running, using the backend key pair captured during startup. The request
// travels on a fresh connection, as the protocol requires.
func (s *Session) Cancel() error {
	conn, err := s.dialer.Dial("tcp", s.spec.Addr(), s.connectTimeout)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", s.spec, err)
	}
	defer conn.Close()
	if err := pgwire.WriteCancelRequest(conn, s.BackendPID, s.SecretKey); err != nil {
		return fmt.Errorf("cancel %s: %w", s.spec, err)
	}
	return nil
}

// decode converts server bytes using the current session encoding, falling
// back to the raw bytes if they do not decode.
func (s *Session) decode(b []byte) string {
	out, err := s.Encoding.Decode(b)
	if err != nil {
		return string(b)
	}
	return out
}
