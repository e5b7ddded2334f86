package pgwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads legacy-protocol messages from a server connection. Messages
// in this protocol phase have no uniform length field, so the caller drives
// the read sequence tag by tag.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps an io.Reader for reading legacy protocol messages.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadTag reads a single message type byte.
func (r *Reader) ReadTag() (byte, error) {
	return r.r.ReadByte()
}

// ReadInt16 reads a big-endian signed 2-byte integer.
func (r *Reader) ReadInt16() (int16, error) {
	var v int16
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read int16: %w", err)
	}
	return v, nil
}

// ReadInt32 reads a big-endian signed 4-byte integer.
func (r *Reader) ReadInt32() (int32, error) {
	var v int32
	if err := binary.Read(r.r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read int32: %w", err)
	}
	return v, nil
}

// ReadString reads a null-terminated byte string. The terminator is
// consumed and not included in the result. Bytes are returned raw; callers
// decode them with the session encoding once it is known.
func (r *Reader) ReadString() ([]byte, error) {
	b, err := r.r.ReadBytes(0)
	if err != nil {
		return nil, fmt.Errorf("read string: %w", err)
	}
	return b[:len(b)-1], nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: negative count", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	return b, nil
}
