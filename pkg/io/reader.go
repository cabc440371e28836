package io

import (
	"bufio"
	"io"
)

// PositionReader is a buffered reader that counts the bytes consumed from
// the underlying stream, so that decoders can report where a problem was
// found.
type PositionReader struct {
	r   *bufio.Reader
	off int64
}

// NewPositionReader wraps r. If r already is a *PositionReader it is
// returned as-is.
func NewPositionReader(r io.Reader) *PositionReader {
	if pr, ok := r.(*PositionReader); ok {
		return pr
	}
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &PositionReader{r: br}
}

// Offset returns the number of bytes consumed so far.
func (pr *PositionReader) Offset() int64 {
	return pr.off
}

func (pr *PositionReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.off += int64(n)
	return n, err
}

func (pr *PositionReader) ReadByte() (byte, error) {
	b, err := pr.r.ReadByte()
	if err == nil {
		pr.off++
	}
	return b, err
}

// Peek returns the next n bytes without consuming them.
func (pr *PositionReader) Peek(n int) ([]byte, error) {
	return pr.r.Peek(n)
}

// Discard skips the next n bytes.
func (pr *PositionReader) Discard(n int) (int, error) {
	d, err := pr.r.Discard(n)
	pr.off += int64(d)
	return d, err
}
