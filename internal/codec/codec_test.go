package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.PutInt32(-42)
	e.PutInt64(1 << 40)
	e.PutBool(true)
	e.PutBool(false)
	e.PutString("/zk/path")
	e.PutString("")
	e.PutBytes([]byte{1, 2, 3})
	e.PutStringList([]string{"a", "", "ccc"})

	d := NewDecoder(e.Bytes())
	if got := d.Int32(); got != -42 {
		t.Errorf("Int32 = %d, want -42", got)
	}
	if got := d.Int64(); got != 1<<40 {
		t.Errorf("Int64 = %d, want %d", got, int64(1)<<40)
	}
	if !d.Bool() || d.Bool() {
		t.Errorf("Bool round trip mismatch")
	}
	if got := d.String(); got != "/zk/path" {
		t.Errorf("String = %q, want /zk/path", got)
	}
	if got := d.String(); got != "" {
		t.Errorf("empty String = %q, want empty", got)
	}
	if got := d.Bytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Bytes = %v, want [1 2 3]", got)
	}
	got := d.StringList()
	if len(got) != 3 || got[0] != "a" || got[1] != "" || got[2] != "ccc" {
		t.Errorf("StringList = %v", got)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNullVersusEmptyVector(t *testing.T) {
	e := NewEncoder()
	e.PutBytes(nil)
	e.PutBytes([]byte{})

	d := NewDecoder(e.Bytes())
	if got := d.Bytes(); got != nil {
		t.Errorf("null vector decoded to %v, want nil", got)
	}
	got := d.Bytes()
	if got == nil || len(got) != 0 {
		t.Errorf("empty vector decoded to %v, want non-nil empty", got)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestDecoderTruncated(t *testing.T) {
	e := NewEncoder()
	e.PutInt64(7)
	d := NewDecoder(e.Bytes()[:5])
	d.Int64()
	if !errors.Is(d.Err(), ErrTruncatedFrame) {
		t.Fatalf("Err = %v, want ErrTruncatedFrame", d.Err())
	}
	// The error sticks across further reads.
	d.Int32()
	if !errors.Is(d.Err(), ErrTruncatedFrame) {
		t.Fatalf("sticky Err = %v, want ErrTruncatedFrame", d.Err())
	}
}

func TestDecoderNegativeStringLength(t *testing.T) {
	e := NewEncoder()
	e.PutInt32(-5)
	d := NewDecoder(e.Bytes())
	_ = d.String()
	if !errors.Is(d.Err(), ErrMalformedLength) {
		t.Fatalf("Err = %v, want ErrMalformedLength", d.Err())
	}
}

func TestDecoderImplausibleListCount(t *testing.T) {
	e := NewEncoder()
	e.PutInt32(1 << 30)
	d := NewDecoder(e.Bytes())
	d.StringList()
	if !errors.Is(d.Err(), ErrMalformedLength) {
		t.Fatalf("Err = %v, want ErrMalformedLength", d.Err())
	}
}

func TestCloseRejectsTrailingBytes(t *testing.T) {
	e := NewEncoder()
	e.PutInt32(1)
	e.PutInt32(2)
	d := NewDecoder(e.Bytes())
	d.Int32()
	if err := d.Close(); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("Close = %v, want ErrTrailingBytes", err)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello ensemble")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf, DefaultFrameLimit)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame = %q, want %q", got, payload)
	}
}

func TestReadFrameHostileLength(t *testing.T) {
	// Frame claims 0x7FFFFFFF bytes but only 12 arrive before EOF.
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 0x7FFFFFFF)
	buf.Write(hdr[:])
	buf.Write(make([]byte, 12))

	// Under the default limit the declared length is rejected outright.
	_, err := ReadFrame(bytes.NewReader(buf.Bytes()), DefaultFrameLimit)
	if !errors.Is(err, ErrMalformedLength) {
		t.Fatalf("ReadFrame = %v, want ErrMalformedLength", err)
	}

	// With the limit wide open the truncation is still detected, and the
	// chunked read bounds the allocation instead of trusting the claim.
	_, err = ReadFrame(bytes.NewReader(buf.Bytes()), 0x7FFFFFFF)
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("ReadFrame = %v, want ErrTruncatedFrame", err)
	}
}

func TestReadFrameNegativeLength(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 0xFFFFFFF0)
	_, err := ReadFrame(bytes.NewReader(hdr[:]), DefaultFrameLimit)
	if !errors.Is(err, ErrMalformedLength) {
		t.Fatalf("ReadFrame = %v, want ErrMalformedLength", err)
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultFrameLimit)
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("ReadFrame = %v, want ErrTruncatedFrame", err)
	}
	_, err = ReadFrame(bytes.NewReader(nil), DefaultFrameLimit)
	if err != io.EOF {
		t.Fatalf("ReadFrame on empty stream = %v, want io.EOF", err)
	}
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf, DefaultFrameLimit)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("payload length = %d, want 0", len(got))
	}
}
