package io

import "io"

// ReadFull fills buf from pr. If the stream ends early a *ShortReadError
// is returned; other read errors are returned unchanged.
func ReadFull(pr *PositionReader, buf []byte) error {
	start := pr.Offset()
	n, err := io.ReadFull(pr, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &ShortReadError{Offset: start + int64(n), Want: len(buf), Got: n}
	}
	return err
}
