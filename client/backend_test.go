package client

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"pgv2/host"
	"pgv2/pgwire"
)

// backendScript configures the fake server's behavior for every connection
// it accepts.
type backendScript struct {
	version    string // version token reported by version(), e.g. "9.6.1"
	dbEncoding string // second column of the bootstrap query; default "UNKNOWN"
	readOnly   bool   // value of transaction_read_only
	confOff    bool   // report standard_conforming_strings off

	authMethod   int32  // pgwire.Auth* demanded before AuthOk (AuthOk = trust)
	authResponse []byte // exact password-message payload to accept
	cryptSalt    [2]byte
	md5Salt      [4]byte
	rejectAuth   string // reject the startup packet with this error instead

	sslPolicy byte // 0: none expected; 'N' refuse, 'E' error, other: raw byte

	notice string // notice sent during the startup drain

	backendPID int32
	secretKey  int32
}

// fakeBackend speaks the server side of the legacy startup protocol for
// client tests.
type fakeBackend struct {
	t      *testing.T
	ln     net.Listener
	script backendScript

	mu          sync.Mutex
	queries     []string
	startups    int
	sslRequests int
	gotUser     string
	gotDatabase string
	cancelPID   int32
	cancelKey   int32
}

// trimNul strips the null padding of a fixed-width startup field.
func trimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func startBackend(t *testing.T, script backendScript) *fakeBackend {
	t.Helper()
	if script.version == "" {
		script.version = "9.6.1"
	}
	if script.dbEncoding == "" {
		script.dbEncoding = "UNKNOWN"
	}
	if script.backendPID == 0 {
		script.backendPID = 4242
	}
	if script.secretKey == 0 {
		script.secretKey = 99991
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &fakeBackend{t: t, ln: ln, script: script}
	go b.acceptLoop()
	t.Cleanup(func() { ln.Close() })
	return b
}

func (b *fakeBackend) spec() host.Spec {
	addr := b.ln.Addr().(*net.TCPAddr)
	return host.Spec{Host: "127.0.0.1", Port: uint16(addr.Port)}
}

func (b *fakeBackend) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		go b.handle(conn)
	}
}

func (b *fakeBackend) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		var length int32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return
		}

		switch length {
		case pgwire.SSLRequestLength:
			if _, err := io.ReadFull(r, make([]byte, 4)); err != nil {
				return
			}
			b.mu.Lock()
			b.sslRequests++
			b.mu.Unlock()
			switch b.script.sslPolicy {
			case pgwire.SSLRefuse:
				conn.Write([]byte{pgwire.SSLRefuse})
				// Plaintext continues on the same stream.
			case pgwire.MsgErrorResponse:
				writeError(conn, "SSL is not supported")
				return
			case 0:
				b.t.Errorf("unexpected SSL request")
				return
			default:
				conn.Write([]byte{b.script.sslPolicy})
				return
			}

		case pgwire.CancelRequestLength:
			payload := make([]byte, 12)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			b.mu.Lock()
			b.cancelPID = int32(binary.BigEndian.Uint32(payload[4:8]))
			b.cancelKey = int32(binary.BigEndian.Uint32(payload[8:12]))
			b.mu.Unlock()
			return

		case pgwire.StartupPacketLength:
			payload := make([]byte, pgwire.StartupPacketLength-4)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			if major := int16(binary.BigEndian.Uint16(payload[:2])); major != pgwire.ProtocolMajor {
				b.t.Errorf("startup packet protocol major = %d, want %d", major, pgwire.ProtocolMajor)
			}
			b.mu.Lock()
			b.startups++
			b.gotDatabase = trimNul(payload[4 : 4+pgwire.StartupDatabaseLength])
			b.gotUser = trimNul(payload[4+pgwire.StartupDatabaseLength : 4+pgwire.StartupDatabaseLength+pgwire.StartupUserLength])
			b.mu.Unlock()
			b.serve(conn, r)
			return

		default:
			b.t.Errorf("unexpected packet length %d", length)
			return
		}
	}
}

func (b *fakeBackend) serve(conn net.Conn, r *bufio.Reader) {
	if b.script.rejectAuth != "" {
		writeError(conn, b.script.rejectAuth)
		return
	}

	switch b.script.authMethod {
	case pgwire.AuthOk:
	case pgwire.AuthCleartextPassword:
		writeAuthRequest(conn, pgwire.AuthCleartextPassword, nil)
		if !b.checkPassword(conn, r) {
			return
		}
	case pgwire.AuthCryptPassword:
		writeAuthRequest(conn, pgwire.AuthCryptPassword, b.script.cryptSalt[:])
		if !b.checkPassword(conn, r) {
			return
		}
	case pgwire.AuthMD5Password:
		writeAuthRequest(conn, pgwire.AuthMD5Password, b.script.md5Salt[:])
		if !b.checkPassword(conn, r) {
			return
		}
	default:
		// Demand a method the client does not implement.
		writeAuthRequest(conn, b.script.authMethod, nil)
		return
	}
	writeAuthRequest(conn, pgwire.AuthOk, nil)

	var buf bytes.Buffer
	buf.WriteByte(pgwire.MsgBackendKeyData)
	writeInt32(&buf, b.script.backendPID)
	writeInt32(&buf, b.script.secretKey)
	if b.script.notice != "" {
		buf.WriteByte(pgwire.MsgNoticeResponse)
		writeCString(&buf, b.script.notice)
	}
	buf.WriteByte(pgwire.MsgReadyForQuery)
	conn.Write(buf.Bytes())

	for {
		tag, err := r.ReadByte()
		if err != nil {
			return
		}
		switch tag {
		case pgwire.MsgQuery:
			sql, err := readCString(r)
			if err != nil {
				return
			}
			b.mu.Lock()
			b.queries = append(b.queries, sql)
			b.mu.Unlock()
			b.respond(conn, sql)
		case pgwire.MsgTerminate:
			return
		default:
			b.t.Errorf("unexpected frontend tag %q", tag)
			return
		}
	}
}

// checkPassword reads one password message and compares it to the scripted
// acceptable response.
func (b *fakeBackend) checkPassword(conn net.Conn, r *bufio.Reader) bool {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return false
	}
	payload := make([]byte, length-4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return false
	}
	if len(payload) == 0 || payload[len(payload)-1] != 0 {
		b.t.Errorf("password message not null-terminated")
		return false
	}
	got := payload[:len(payload)-1]
	if !bytes.Equal(got, b.script.authResponse) {
		writeError(conn, "password authentication failed")
		return false
	}
	return true
}

func (b *fakeBackend) respond(conn net.Conn, sql string) {
	script := b.script
	switch {
	case strings.Contains(sql, "select version()"):
		banner := fmt.Sprintf("PostgreSQL %s on x86_64-pc-linux-gnu, compiled by gcc", script.version)
		writeResult(conn, [][]byte{[]byte(banner), []byte(script.dbEncoding)})
	case strings.Contains(sql, "standard_conforming_strings"):
		val := "on"
		if script.confOff {
			val = "off"
		}
		writeResult(conn, [][]byte{[]byte(val)})
	case strings.Contains(sql, "transaction_read_only"):
		val := "off"
		if script.readOnly {
			val = "on"
		}
		writeResult(conn, [][]byte{[]byte(val)})
	default:
		var buf bytes.Buffer
		buf.WriteByte(pgwire.MsgCommandComplete)
		writeCString(&buf, "SET")
		buf.WriteByte(pgwire.MsgReadyForQuery)
		conn.Write(buf.Bytes())
	}
}

// writeResult sends one row in the legacy text format: row description,
// cursor response, the null-bitmapped row, completion, ready.
func writeResult(conn net.Conn, values [][]byte) {
	var buf bytes.Buffer

	buf.WriteByte(pgwire.MsgRowDescription)
	writeInt16(&buf, int16(len(values)))
	for i := range values {
		writeCString(&buf, fmt.Sprintf("col%d", i))
		writeInt32(&buf, 25) // text
		writeInt16(&buf, -1)
		writeInt32(&buf, -1)
	}

	buf.WriteByte(pgwire.MsgCursorResponse)
	writeCString(&buf, "blank")

	buf.WriteByte(pgwire.MsgAsciiRow)
	bitmap := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v != nil {
			bitmap[i/8] |= 0x80 >> (i % 8)
		}
	}
	buf.Write(bitmap)
	for _, v := range values {
		if v == nil {
			continue
		}
		writeInt32(&buf, int32(len(v)+4))
		buf.Write(v)
	}

	buf.WriteByte(pgwire.MsgCommandComplete)
	writeCString(&buf, "SELECT")
	buf.WriteByte(pgwire.MsgReadyForQuery)

	conn.Write(buf.Bytes())
}

func writeAuthRequest(conn net.Conn, sub int32, extra []byte) {
	var buf bytes.Buffer
	buf.WriteByte(pgwire.MsgAuthentication)
	writeInt32(&buf, sub)
	buf.Write(extra)
	conn.Write(buf.Bytes())
}

func writeError(w io.Writer, msg string) {
	var buf bytes.Buffer
	buf.WriteByte(pgwire.MsgErrorResponse)
	writeCString(&buf, msg)
	w.Write(buf.Bytes())
}

func writeInt16(buf *bytes.Buffer, v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	buf.Write(b[:])
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

// recordedQueries returns a copy of every query the backend has seen.
func (b *fakeBackend) recordedQueries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...)
}
