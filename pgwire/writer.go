package pgwire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrIdentifierTooLong is returned when a database or user name does not fit
// its fixed-width startup packet field. The legacy packet layout has no way
// to carry a longer name, and truncating would silently connect as a
// different identity.
var ErrIdentifierTooLong = errors.New("identifier too long for startup packet field")

// Writer writes legacy-protocol messages to a server connection.
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter wraps an io.Writer for writing legacy protocol messages.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, StartupPacketLength),
	}
}

// Flush flushes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// WriteSSLRequest writes the 8-byte SSL negotiation request.
func (w *Writer) WriteSSLRequest() error {
	w.buf = w.buf[:0]
	w.writeInt32(SSLRequestLength)
	w.writeInt16(SSLMagicHigh)
	w.writeInt16(SSLMagicLow)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteStartup writes the fixed-layout startup packet: total length,
// protocol major/minor, then null-padded fixed-width fields for database
// and user followed by three reserved blocks. Names are UTF-8 encoded and
// must fit their field; overflow is ErrIdentifierTooLong.
func (w *Writer) WriteStartup(database, user string) error {
	w.buf = w.buf[:0]
	w.writeInt32(StartupPacketLength)
	w.writeInt16(ProtocolMajor)
	w.writeInt16(ProtocolMinor)
	if err := w.writeFixed(database, StartupDatabaseLength, "database"); err != nil {
		return err
	}
	if err := w.writeFixed(user, StartupUserLength, "user"); err != nil {
		return err
	}
	w.buf = append(w.buf, make([]byte, 3*StartupReservedLength)...)
	_, err := w.w.Write(w.buf)
	return err
}

// WritePassword writes an authentication response: a 4-byte length
// (counting itself and the terminator), the response bytes, and one
// terminating zero byte.
func (w *Writer) WritePassword(response []byte) error {
	w.buf = w.buf[:0]
	w.writeInt32(int32(4 + len(response) + 1))
	w.buf = append(w.buf, response...)
	w.buf = append(w.buf, 0)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteQuery writes a simple query message: the tag byte followed by the
// null-terminated query text. The legacy query message carries no length
// field.
func (w *Writer) WriteQuery(sql string) error {
	w.buf = w.buf[:0]
	w.buf = append(w.buf, MsgQuery)
	w.buf = append(w.buf, sql...)
	w.buf = append(w.buf, 0)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteTerminate writes the bare terminate tag.
func (w *Writer) WriteTerminate() error {
	return w.w.WriteByte(MsgTerminate)
}

// WriteCancelRequest writes the 16-byte cancel packet for the given backend
// key pair. Sent as the only traffic on a fresh connection.
func WriteCancelRequest(w io.Writer, pid, secret int32) error {
	buf := make([]byte, 0, CancelRequestLength)
	buf = binary.BigEndian.AppendUint32(buf, uint32(CancelRequestLength))
	buf = binary.BigEndian.AppendUint16(buf, uint16(CancelMagicHigh))
	buf = binary.BigEndian.AppendUint16(buf, uint16(CancelMagicLow))
	buf = binary.BigEndian.AppendUint32(buf, uint32(pid))
	buf = binary.BigEndian.AppendUint32(buf, uint32(secret))
	_, err := w.Write(buf)
	return err
}

// writeFixed appends a null-padded fixed-width field.
func (w *Writer) writeFixed(s string, width int, field string) error {
	if len(s) > width {
		return fmt.Errorf("%s %q is %d bytes, limit %d: %w",
			field, s, len(s), width, ErrIdentifierTooLong)
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, make([]byte, width-len(s))...)
	return nil
}

func (w *Writer) writeInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) writeInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}
