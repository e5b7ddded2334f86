package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"pgv2/config"
	"pgv2/host"
	"pgv2/pgwire"
)

// Dialer opens the byte stream to one candidate. Swappable in tests.
type Dialer interface {
	Dial(network, addr string, timeout time.Duration) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) Dial(network, addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, addr, timeout)
}

// TLSUpgrade performs the security upgrade in place on an established
// stream, returning the stream to use from then on.
type TLSUpgrade func(conn net.Conn, cfg *tls.Config) (net.Conn, error)

func upgradeTLS(conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// establish opens the transport to spec, runs the optional SSL
// sub-negotiation, and applies the socket options from the configuration.
func (c *Connector) establish(spec host.Spec) (net.Conn, error) {
	conn, err := c.dial(spec)
	if err != nil {
		return nil, err
	}
	if c.cfg.SSLRequested() {
		conn, err = c.negotiateSSL(conn, spec)
		if err != nil {
			return nil, err
		}
	}
	if c.cfg.ReadTimeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: c.cfg.ReadTimeout}
	}
	return conn, nil
}

func (c *Connector) dial(spec host.Spec) (net.Conn, error) {
	conn, err := c.Dialer.Dial("tcp", spec.Addr(), c.cfg.ConnectTimeout)
	if err != nil {
		return nil, fail(ClassTransport, spec, fmt.Errorf("dial: %w", err))
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetKeepAlive(c.cfg.KeepAlive)
	}
	return conn, nil
}

// negotiateSSL sends the 8-byte SSL request and dispatches on the single
// response byte. The response is read straight off the connection: on
// acceptance the TLS handshake follows immediately and nothing may be
// buffered past it.
func (c *Connector) negotiateSSL(conn net.Conn, spec host.Spec) (net.Conn, error) {
	debugf("%s: FE=> SSLRequest", spec)
	w := pgwire.NewWriter(conn)
	err := w.WriteSSLRequest()
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		conn.Close()
		return nil, fail(ClassTransport, spec, fmt.Errorf("send SSL request: %w", err))
	}

	resp := make([]byte, 1)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, fail(ClassTransport, spec, fmt.Errorf("read SSL response: %w", err))
	}

	switch resp[0] {
	case pgwire.SSLAccept:
		debugf("%s: <=BE SSLOk", spec)
		tlsConn, err := c.Upgrade(conn, c.tlsConfig(spec))
		if err != nil {
			conn.Close()
			return nil, fail(ClassTransport, spec, fmt.Errorf("security upgrade: %w", err))
		}
		return tlsConn, nil

	case pgwire.SSLRefuse:
		debugf("%s: <=BE SSLRefused", spec)
		if c.cfg.SSLRequired() {
			conn.Close()
			return nil, fail(ClassConfig, spec, errors.New("server does not support secure transport"))
		}
		return conn, nil

	case pgwire.MsgErrorResponse:
		// Servers predating the SSL sub-protocol answer with an
		// application-level error. The stream is unusable either way; if
		// plaintext is acceptable, reconnect fresh.
		debugf("%s: <=BE SSLError", spec)
		conn.Close()
		if c.cfg.SSLRequired() {
			return nil, fail(ClassConfig, spec, errors.New("server does not support secure transport"))
		}
		return c.dial(spec)

	default:
		conn.Close()
		return nil, failf(ClassProtocol, spec, "unexpected response %q to SSL request", resp[0])
	}
}

// tlsConfig builds the upgrade configuration for one candidate. The
// "prefer" and "require" modes follow the convention that they encrypt
// without verifying the peer; the verify modes turn verification on.
func (c *Connector) tlsConfig(spec host.Spec) *tls.Config {
	if c.cfg.TLSConfig != nil {
		return c.cfg.TLSConfig
	}
	cfg := &tls.Config{ServerName: spec.Host}
	switch c.cfg.SSLMode {
	case config.SSLVerifyCA, config.SSLVerifyFull:
	default:
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

// deadlineConn arms a read deadline before every read so that a stalled
// server surfaces as an I/O timeout rather than a hang.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if err := d.Conn.SetReadDeadline(time.Now().Add(d.timeout)); err != nil {
		return 0, err
	}
	return d.Conn.Read(p)
}
