package io

import "fmt"

// ShortReadError tells the caller that the stream ended before a block of
// the expected size could be read.
type ShortReadError struct {
	Offset int64
	Want   int
	Got    int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("unexpected end of stream at offset %d: wanted %d bytes, got %d", e.Offset, e.Want, e.Got)
}
