// Package fixture synthesizes small animated WebP and HEIF files for tests.
//
// WebP frames are solid color VP8L bitstreams whose five prefix codes each
// have a single symbol, so every pixel costs zero bits. HEIF sequences use
// the "rgba" sample entry, whose samples are raw NRGBA pixels; RawDecoder
// decodes them.
package fixture

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"time"
)

// bitWriter packs values least significant bit first, as VP8L expects.
type bitWriter struct {
	buf   []byte
	acc   uint64
	nBits uint
}

func (w *bitWriter) write(v uint32, n uint) {
	w.acc |= uint64(v) << w.nBits
	w.nBits += n
	for w.nBits >= 8 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc >>= 8
		w.nBits -= 8
	}
}

func (w *bitWriter) bytes() []byte {
	if w.nBits > 0 {
		w.buf = append(w.buf, byte(w.acc))
		w.acc, w.nBits = 0, 0
	}
	return w.buf
}

// SolidVP8L returns a VP8L bitstream of a w x h image filled with c.
func SolidVP8L(w, h int, c color.NRGBA) []byte {
	var bw bitWriter
	bw.write(0x2f, 8)
	bw.write(uint32(w-1), 14)
	bw.write(uint32(h-1), 14)
	bw.write(1, 1) // alpha is used
	bw.write(0, 3) // version
	bw.write(0, 1) // no transform
	bw.write(0, 1) // no color cache
	bw.write(0, 1) // no meta prefix codes
	for _, sym := range []uint8{c.G, c.R, c.B, c.A} {
		bw.write(1, 1) // simple code
		bw.write(0, 1) // one symbol
		bw.write(1, 1) // 8 bit symbol
		bw.write(uint32(sym), 8)
	}
	// Distance code: one 1 bit symbol, 0.
	bw.write(1, 1)
	bw.write(0, 1)
	bw.write(0, 1)
	bw.write(0, 1)
	return bw.bytes()
}

// WebPFrame is one ANMF frame of a solid color.
type WebPFrame struct {
	// Rect must start at even coordinates.
	Rect     image.Rectangle
	Color    color.NRGBA
	Duration time.Duration
	// Dispose clears Rect to the background after the frame is shown.
	Dispose bool
	// Blend alpha-blends the frame onto the canvas instead of replacing it.
	Blend bool
}

// AnimatedWebP returns an animated WebP file with a w x h canvas.
func AnimatedWebP(w, h, loopCount int, frames ...WebPFrame) []byte {
	vp8x := make([]byte, 10)
	vp8x[0] = 1<<1 | 1<<4 // animation, alpha
	putUint24(vp8x[4:], uint32(w-1))
	putUint24(vp8x[7:], uint32(h-1))

	anim := make([]byte, 6)
	binary.LittleEndian.PutUint16(anim[4:], uint16(loopCount))

	chunks := [][]byte{
		riffChunk("VP8X", vp8x),
		riffChunk("ANIM", anim),
	}
	for _, f := range frames {
		hdr := make([]byte, 16)
		putUint24(hdr[0:], uint32(f.Rect.Min.X/2))
		putUint24(hdr[3:], uint32(f.Rect.Min.Y/2))
		putUint24(hdr[6:], uint32(f.Rect.Dx()-1))
		putUint24(hdr[9:], uint32(f.Rect.Dy()-1))
		putUint24(hdr[12:], uint32(f.Duration/time.Millisecond))
		if f.Dispose {
			hdr[15] |= 1 << 0
		}
		if !f.Blend {
			hdr[15] |= 1 << 1
		}
		payload := append(hdr, riffChunk("VP8L", SolidVP8L(f.Rect.Dx(), f.Rect.Dy(), f.Color))...)
		chunks = append(chunks, riffChunk("ANMF", payload))
	}
	return riffFile(chunks...)
}

// StillWebP returns a lossless WebP file without a VP8X chunk.
func StillWebP(w, h int, c color.NRGBA) []byte {
	return riffFile(riffChunk("VP8L", SolidVP8L(w, h, c)))
}

func riffChunk(id string, data []byte) []byte {
	b := make([]byte, 0, 8+len(data)+1)
	b = append(b, id...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)
	if len(data)&1 != 0 {
		b = append(b, 0)
	}
	return b
}

func riffFile(chunks ...[]byte) []byte {
	size := 4
	for _, c := range chunks {
		size += len(c)
	}
	b := append([]byte("RIFF"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(b[4:], uint32(size))
	b = append(b, "WEBP"...)
	for _, c := range chunks {
		b = append(b, c...)
	}
	return b
}

func putUint24(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}

// RawSampleType is the sample entry type of raw NRGBA samples.
const RawSampleType = "rgba"

// HEIFFrame is one sample of a HEIF image sequence.
type HEIFFrame struct {
	Image    *image.NRGBA
	Duration time.Duration
}

// HEIF describes a HEIF image sequence with one picture track.
type HEIF struct {
	// Type is the sample entry type, RawSampleType when empty.
	Type          string
	Width, Height int
	// Repeat sets the edit list repeat flag.
	Repeat bool
	Frames []HEIFFrame
	// LargeOffsets writes a co64 chunk offset box instead of stco.
	LargeOffsets bool
	// ChunkOffsets replaces the computed chunk offsets when not nil.
	ChunkOffsets []uint64
}

// Bytes encodes the sequence as an ISO base media file: ftyp, mdat and
// moov, with one sample per chunk.
func (s HEIF) Bytes() []byte {
	typ := s.Type
	if typ == "" {
		typ = RawSampleType
	}

	ftyp := isoBox("ftyp", []byte("msf1"), u32(0), []byte("msf1iso8"))

	var mdat []byte
	offsets := make([]uint64, len(s.Frames))
	base := len(ftyp) + 8
	for i, f := range s.Frames {
		offsets[i] = uint64(base + len(mdat))
		mdat = append(mdat, f.Image.Pix...)
	}

	tkhd := make([]byte, 80)
	binary.BigEndian.PutUint32(tkhd[8:], 1) // track ID
	binary.BigEndian.PutUint32(tkhd[72:], uint32(s.Width)<<16)
	binary.BigEndian.PutUint32(tkhd[76:], uint32(s.Height)<<16)

	var elstFlags uint32
	if s.Repeat {
		elstFlags = 1
	}
	elst := fullBox("elst", 0, elstFlags, u32(1), u32(0), u32(0), u32(1<<16))

	mdhd := make([]byte, 20)
	binary.BigEndian.PutUint32(mdhd[8:], 1000) // timescale

	hdlr := append(append(u32(0), "pict"...), make([]byte, 13)...)

	entry := make([]byte, 78)
	binary.BigEndian.PutUint16(entry[6:], 1) // data reference index
	binary.BigEndian.PutUint16(entry[24:], uint16(s.Width))
	binary.BigEndian.PutUint16(entry[26:], uint16(s.Height))
	binary.BigEndian.PutUint16(entry[74:], 24) // depth

	stts := u32(uint32(len(s.Frames)))
	if s.ChunkOffsets != nil {
		offsets = s.ChunkOffsets
	}
	stco := u32(uint32(len(offsets)))
	for _, f := range s.Frames {
		stts = append(stts, u32(1)...)
		stts = append(stts, u32(uint32(f.Duration/time.Millisecond))...)
	}
	offsetBox := "stco"
	for _, off := range offsets {
		if s.LargeOffsets {
			stco = binary.BigEndian.AppendUint64(stco, off)
		} else {
			stco = append(stco, u32(uint32(off))...)
		}
	}
	if s.LargeOffsets {
		offsetBox = "co64"
	}
	sampleSize := uint32(4 * s.Width * s.Height)

	stbl := isoBox("stbl",
		fullBox("stsd", 0, 0, u32(1), isoBox(typ, entry)),
		fullBox("stts", 0, 0, stts),
		fullBox("stsc", 0, 0, u32(1), u32(1), u32(1), u32(1)),
		fullBox("stsz", 0, 0, u32(sampleSize), u32(uint32(len(s.Frames)))),
		fullBox(offsetBox, 0, 0, stco),
	)
	trak := isoBox("trak",
		fullBox("tkhd", 0, 3, tkhd),
		isoBox("edts", elst),
		isoBox("mdia",
			fullBox("mdhd", 0, 0, mdhd),
			fullBox("hdlr", 0, 0, hdlr),
			isoBox("minf", stbl),
		),
	)
	mvhd := make([]byte, 96)
	binary.BigEndian.PutUint32(mvhd[8:], 1000)

	var b []byte
	b = append(b, ftyp...)
	b = append(b, isoBox("mdat", mdat)...)
	b = append(b, isoBox("moov", fullBox("mvhd", 0, 0, mvhd), trak)...)
	return b
}

func isoBox(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	b := make([]byte, 0, size)
	b = binary.BigEndian.AppendUint32(b, uint32(size))
	b = append(b, typ...)
	for _, p := range payload {
		b = append(b, p...)
	}
	return b
}

func fullBox(typ string, version uint8, flags uint32, payload ...[]byte) []byte {
	vf := u32(uint32(version)<<24 | flags&0xffffff)
	return isoBox(typ, append([][]byte{vf}, payload...)...)
}

func u32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// RawDecoder decodes RawSampleType samples of a Width x Height track.
type RawDecoder struct {
	Width, Height int
}

func (d RawDecoder) DecodeSample(sample []byte) (image.Image, error) {
	if len(sample) != 4*d.Width*d.Height {
		return nil, fmt.Errorf("fixture: raw sample of %d bytes for %dx%d", len(sample), d.Width, d.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, d.Width, d.Height))
	copy(img.Pix, sample)
	return img, nil
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
