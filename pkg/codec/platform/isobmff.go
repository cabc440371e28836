package platform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errShortBox = errors.New("platform: box shorter than its header")

// box is one ISO base media file format box. data is the payload after the
// size and type fields; offset is the position of data in the file.
type box struct {
	typ    string
	data   []byte
	offset int64
}

// boxReader iterates over the boxes stored back to back in buf.
type boxReader struct {
	buf  []byte
	base int64
	off  int
}

func newBoxReader(b box) *boxReader {
	return &boxReader{buf: b.data, base: b.offset}
}

// next returns the next box, or io.EOF once buf is exhausted.
func (r *boxReader) next() (box, error) {
	rest := r.buf[r.off:]
	if len(rest) == 0 {
		return box{}, io.EOF
	}
	if len(rest) < 8 {
		return box{}, errShortBox
	}
	size := uint64(binary.BigEndian.Uint32(rest))
	typ := string(rest[4:8])
	hdrLen := uint64(8)
	switch size {
	case 0:
		// The box extends to the end of its parent.
		size = uint64(len(rest))
	case 1:
		if len(rest) < 16 {
			return box{}, errShortBox
		}
		size = binary.BigEndian.Uint64(rest[8:])
		hdrLen = 16
	}
	if size < hdrLen || size > uint64(len(rest)) {
		return box{}, fmt.Errorf("platform: box %q size %d does not fit in %d bytes", typ, size, len(rest))
	}
	b := box{
		typ:    typ,
		data:   rest[hdrLen:size],
		offset: r.base + int64(r.off) + int64(hdrLen),
	}
	r.off += int(size)
	return b, nil
}

// children returns the boxes inside b keyed by type. Only the first box of
// each type is kept, except for the types listed in multi.
func children(b box, multi ...string) (map[string][]box, error) {
	m := make(map[string][]box)
	r := newBoxReader(b)
	for {
		c, err := r.next()
		if err == io.EOF {
			return m, nil
		}
		if err != nil {
			return nil, err
		}
		if len(m[c.typ]) > 0 && !contains(multi, c.typ) {
			continue
		}
		m[c.typ] = append(m[c.typ], c)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fullBox splits the version and flags off a full box payload.
func fullBox(b box) (version uint8, flags uint32, payload []byte, err error) {
	if len(b.data) < 4 {
		return 0, 0, nil, fmt.Errorf("platform: full box %q too short", b.typ)
	}
	return b.data[0], binary.BigEndian.Uint32(b.data) & 0xffffff, b.data[4:], nil
}

// tableReader reads the big-endian fields of a box payload, remembering
// the first short read.
type tableReader struct {
	buf []byte
	err error
}

func (t *tableReader) u32() uint32 {
	if t.err != nil {
		return 0
	}
	if len(t.buf) < 4 {
		t.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.BigEndian.Uint32(t.buf)
	t.buf = t.buf[4:]
	return v
}

func (t *tableReader) u64() uint64 {
	if t.err != nil {
		return 0
	}
	if len(t.buf) < 8 {
		t.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.BigEndian.Uint64(t.buf)
	t.buf = t.buf[8:]
	return v
}

func (t *tableReader) skip(n int) {
	if t.err != nil {
		return
	}
	if len(t.buf) < n {
		t.err = io.ErrUnexpectedEOF
		return
	}
	t.buf = t.buf[n:]
}

// count reads an entry count and checks that entrySize bytes per entry are
// present.
func (t *tableReader) count(entrySize int) int {
	n := t.u32()
	if t.err == nil && uint64(n)*uint64(entrySize) > uint64(len(t.buf)) {
		t.err = fmt.Errorf("platform: %d table entries do not fit in %d bytes", n, len(t.buf))
		return 0
	}
	return int(n)
}
