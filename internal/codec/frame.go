package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultFrameLimit is the largest frame accepted from a peer unless the
// caller configures its own limit.
const DefaultFrameLimit = 1536 * 1024

// frameChunk bounds a single allocation while reading a frame body, so a
// hostile length prefix cannot force a large up-front allocation.
const frameChunk = 64 * 1024

// ReadFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by exactly that many payload bytes. A negative declared length
// or one above limit fails with ErrMalformedLength before any
// length-proportional allocation. A stream that ends early fails with
// ErrTruncatedFrame.
func ReadFrame(r io.Reader, limit int32) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncatedFrame
		}
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(hdr[:]))
	if n < 0 || n > limit {
		return nil, fmt.Errorf("%w: declared frame length %d", ErrMalformedLength, n)
	}

	buf := make([]byte, 0, min(int(n), frameChunk))
	remaining := int(n)
	for remaining > 0 {
		chunk := min(remaining, frameChunk)
		start := len(buf)
		buf = append(buf, make([]byte, chunk)...)
		if _, err := io.ReadFull(r, buf[start:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrTruncatedFrame
			}
			return nil, err
		}
		remaining -= chunk
	}
	return buf, nil
}

// WriteFrame writes payload prefixed with its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
