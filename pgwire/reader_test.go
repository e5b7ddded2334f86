package pgwire

import (
	"bytes"
	"testing"
)

func TestReaderSequence(t *testing.T) {
	input := []byte{
		'R',
		0, 0, 0, 5, // int32
		0xff, 0xfe, // int16 (-2)
		'h', 'i', 0, // cstring
		1, 2, 3, // raw bytes
	}
	r := NewReader(bytes.NewReader(input))

	tag, err := r.ReadTag()
	if err != nil || tag != 'R' {
		t.Fatalf("ReadTag = %q, %v", tag, err)
	}
	i32, err := r.ReadInt32()
	if err != nil || i32 != 5 {
		t.Fatalf("ReadInt32 = %d, %v", i32, err)
	}
	i16, err := r.ReadInt16()
	if err != nil || i16 != -2 {
		t.Fatalf("ReadInt16 = %d, %v", i16, err)
	}
	s, err := r.ReadString()
	if err != nil || string(s) != "hi" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	b, err := r.ReadBytes(3)
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Fatalf("ReadBytes = %v, %v", b, err)
	}
}

func TestReadStringKeepsRawBytes(t *testing.T) {
	// High-bit bytes must come through undecoded; the session charset is
	// applied later.
	r := NewReader(bytes.NewReader([]byte{0xe9, 0xff, 0}))
	s, err := r.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s, []byte{0xe9, 0xff}) {
		t.Errorf("ReadString = %x", s)
	}
}

func TestReadStringUnterminated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("no terminator")))
	if _, err := r.ReadString(); err == nil {
		t.Error("expected error on missing terminator")
	}
}

func TestReadBytesShortInput(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 2}))
	if _, err := r.ReadBytes(5); err == nil {
		t.Error("expected error on short read")
	}
}

func TestReadBytesNegative(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	if _, err := r.ReadBytes(-1); err == nil {
		t.Error("expected error on negative count")
	}
}
