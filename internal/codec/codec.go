// Package codec implements the primitive binary encoding shared by every
// request, response and watch event on a ZooKeeper connection: fixed-width
// big-endian integers, length-prefixed UTF-8 strings and length-prefixed
// byte vectors, where a declared length of -1 denotes a null vector as
// opposed to an empty one.
//
// Decoding is strict. Reading past the end of a buffer, a negative or
// over-limit declared length, or bytes left over after a record has been
// fully decoded are all errors: a single misread length desynchronizes the
// entire multiplexed stream, so nothing is ever skipped or guessed.
package codec

import (
	"encoding/binary"
	"errors"
	"math"
)

// Codec errors. All of them are fatal to the connection they occur on.
var (
	// ErrMalformedLength indicates a declared length that is negative or
	// exceeds the configured frame limit.
	ErrMalformedLength = errors.New("zkwire: malformed length")

	// ErrTruncatedFrame indicates a record or frame that ended before its
	// declared length was satisfied.
	ErrTruncatedFrame = errors.New("zkwire: truncated frame")

	// ErrTrailingBytes indicates undecoded bytes after a complete record.
	ErrTrailingBytes = errors.New("zkwire: trailing bytes after record")
)

// MaxStringLen bounds a single string or byte vector inside a record.
// A peer declaring more than this is treated as hostile.
const MaxStringLen = 10 << 20

// Encoder appends primitive values to a growing buffer.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with some preallocated capacity.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Bytes returns the encoded payload. The slice aliases the encoder's
// internal buffer and is only valid until the next Put call.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// PutInt32 appends a big-endian 32-bit integer.
func (e *Encoder) PutInt32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

// PutInt64 appends a big-endian 64-bit integer.
func (e *Encoder) PutInt64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

// PutBool appends a boolean as a single byte.
func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// PutString appends a length-prefixed UTF-8 string.
func (e *Encoder) PutString(s string) {
	e.PutInt32(int32(len(s)))
	e.buf = append(e.buf, s...)
}

// PutBytes appends a length-prefixed byte vector. A nil slice is encoded
// with length -1, which the protocol distinguishes from an empty vector.
func (e *Encoder) PutBytes(b []byte) {
	if b == nil {
		e.PutInt32(-1)
		return
	}
	e.PutInt32(int32(len(b)))
	e.buf = append(e.buf, b...)
}

// PutStringList appends an element-count prefix followed by each string.
func (e *Encoder) PutStringList(ss []string) {
	e.PutInt32(int32(len(ss)))
	for _, s := range ss {
		e.PutString(s)
	}
}

// Decoder reads primitive values from a byte slice. The first failed read
// sticks: every subsequent read returns the zero value and Err reports the
// original failure.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder returns a decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Err returns the first decoding error, or nil.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of undecoded bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Close verifies the record consumed the buffer exactly. It returns the
// sticky decode error if one occurred, or ErrTrailingBytes if undecoded
// bytes remain.
func (d *Decoder) Close() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		return ErrTrailingBytes
	}
	return nil
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.fail(ErrTruncatedFrame)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Int32 reads a big-endian 32-bit integer.
func (d *Decoder) Int32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// Int64 reads a big-endian 64-bit integer.
func (d *Decoder) Int64() int64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Bool reads a single byte as a boolean.
func (d *Decoder) Bool() bool {
	b := d.take(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() string {
	n := d.Int32()
	if d.err != nil {
		return ""
	}
	if n < 0 || n > MaxStringLen {
		d.fail(ErrMalformedLength)
		return ""
	}
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

// Bytes reads a length-prefixed byte vector. A declared length of -1
// yields nil, any other negative or over-limit length is an error.
func (d *Decoder) Bytes() []byte {
	n := d.Int32()
	if d.err != nil {
		return nil
	}
	if n == -1 {
		return nil
	}
	if n < 0 || n > MaxStringLen {
		d.fail(ErrMalformedLength)
		return nil
	}
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// StringList reads an element-count prefix followed by that many strings.
func (d *Decoder) StringList() []string {
	n := d.Int32()
	if d.err != nil {
		return nil
	}
	if n < 0 || n > math.MaxInt32/4 || int(n) > d.Remaining() {
		// Each element needs at least its own 4-byte length prefix, so a
		// count beyond Remaining can never decode.
		d.fail(ErrMalformedLength)
		return nil
	}
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		out = append(out, d.String())
		if d.err != nil {
			return nil
		}
	}
	return out
}
