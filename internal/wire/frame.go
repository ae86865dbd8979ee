// Package wire implements the control-stream framing used between nodes:
// a 4-byte big-endian length prefix followed by that many bytes of UTF-8
// JSON. Reads reject overlong frames as fatal to the stream.
package wire

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameLen is the largest control-frame payload accepted on the wire.
const MaxFrameLen = 256_000

// ErrFrameTooLarge is returned when a peer announces a frame length beyond
// MaxFrameLen. The caller must treat this as fatal for the stream.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum length")

// WriteFrame writes a length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// ReadFrame reads a single length-prefixed frame from r. It returns
// ErrFrameTooLarge if the announced length exceeds MaxFrameLen; the caller
// must close the underlying stream in that case, since the reader is left
// mid-frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: reading frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}
	return buf, nil
}

// ReadFrameContext reads a single frame from r, respecting ctx cancellation.
// Readers that support deadlines should prefer SetReadDeadline directly;
// this helper is for callers (such as handshake reads) that only have a
// context-based timeout available.
func ReadFrameContext(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		buf []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		buf, err := ReadFrame(r)
		ch <- result{buf, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.buf, res.err
	}
}
