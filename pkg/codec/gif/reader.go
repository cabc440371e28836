package gif

import (
	"errors"
	"io"

	mio "github.com/pion/animdecode/pkg/io"
)

var errTruncated = errors.New("gif: unexpected end of stream")

// blockReader parses the block structure of GIF image data, which comprises
// (n, (n bytes)) blocks with 1 <= n <= 255, terminated by a zero-length
// block. It is the reader given to the LZW decoder, which is thus immune to
// the blocking.
type blockReader struct {
	r     *mio.PositionReader
	slice []byte
	err   error
	tmp   [255]byte
}

func (b *blockReader) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(b.slice) == 0 {
		blockLen, err := b.r.ReadByte()
		if err != nil {
			b.err = errTruncated
			return 0, b.err
		}
		if blockLen == 0 {
			b.err = io.EOF
			return 0, b.err
		}
		b.slice = b.tmp[:blockLen]
		if err := mio.ReadFull(b.r, b.slice); err != nil {
			b.err = err
			return 0, b.err
		}
	}
	n := copy(p, b.slice)
	b.slice = b.slice[n:]
	return n, nil
}

// drain consumes the remaining sub-blocks up to and including the
// terminator. Data the LZW decoder did not ask for is discarded.
func (b *blockReader) drain() error {
	var discard [255]byte
	for b.err == nil {
		b.slice = nil
		b.Read(discard[:])
	}
	if b.err == io.EOF {
		return nil
	}
	return b.err
}

// skipSubBlocks consumes a sequence of data sub-blocks.
func skipSubBlocks(r *mio.PositionReader) error {
	for {
		n, err := r.ReadByte()
		if err != nil {
			return errTruncated
		}
		if n == 0 {
			return nil
		}
		if d, _ := r.Discard(int(n)); d != int(n) {
			return errTruncated
		}
	}
}

func isTruncation(err error) bool {
	var short *mio.ShortReadError
	return err == errTruncated || errors.As(err, &short)
}
