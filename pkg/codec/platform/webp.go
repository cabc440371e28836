package platform

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"time"

	"golang.org/x/image/riff"
	"golang.org/x/image/webp"

	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

var (
	fccALPH = riff.FourCC{'A', 'L', 'P', 'H'}
	fccANIM = riff.FourCC{'A', 'N', 'I', 'M'}
	fccANMF = riff.FourCC{'A', 'N', 'M', 'F'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
)

// VP8X feature flags.
const (
	vp8xAnimation = 1 << 1
	vp8xAlpha     = 1 << 4
)

// ANMF flags.
const (
	anmfDispose = 1 << 0
	anmfNoBlend = 1 << 1
)

const anmfHeaderLen = 16

type webpBackend struct {
	limits codec.Limits

	width, height int
	// still is set for files without animation, decoded as one frame.
	still  []byte
	frames [][]byte
	next   int
	opened bool
}

// NewWebP returns the native WebP backend. The RIFF container is walked
// with golang.org/x/image/riff and every frame bitstream is decoded by
// golang.org/x/image/webp.
func NewWebP(limits codec.Limits) codec.Backend {
	return &webpBackend{limits: limits}
}

func (b *webpBackend) Open(r io.Reader) (codec.Header, error) {
	if b.opened {
		return codec.Header{}, fmt.Errorf("platform: webp backend already opened")
	}
	b.opened = true

	data, err := readAll(r, b.limits)
	if err != nil {
		return codec.Header{}, err
	}
	formType, chunks, err := riff.NewReader(bytes.NewReader(data))
	if err != nil {
		return codec.Header{}, malformed(codec.FormatWebP, -1, "reading RIFF header", err)
	}
	if formType != fccWEBP {
		return codec.Header{}, malformed(codec.FormatWebP, -1, fmt.Sprintf("unexpected RIFF form type %q", formType[:]), nil)
	}

	id, _, cr, err := chunks.Next()
	if err != nil {
		return codec.Header{}, malformed(codec.FormatWebP, -1, "reading first chunk", err)
	}
	switch id {
	case fccVP8, fccVP8L:
		return b.openStill(data)
	case fccVP8X:
	default:
		return codec.Header{}, malformed(codec.FormatWebP, -1, fmt.Sprintf("unexpected chunk %q", id[:]), nil)
	}

	var vp8x [10]byte
	if _, err := io.ReadFull(cr, vp8x[:]); err != nil {
		return codec.Header{}, malformed(codec.FormatWebP, -1, "reading VP8X chunk", err)
	}
	b.width = 1 + int(uint24(vp8x[4:]))
	b.height = 1 + int(uint24(vp8x[7:]))
	if err := b.limits.CheckCanvas(b.width, b.height); err != nil {
		return codec.Header{}, err
	}
	if vp8x[0]&vp8xAnimation == 0 {
		return b.openStill(data)
	}

	hdr := codec.Header{Width: b.width, Height: b.height}
	seenANIM := false
	for {
		id, n, cr, err := chunks.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return codec.Header{}, malformed(codec.FormatWebP, len(b.frames), "reading chunk", err)
		}
		switch id {
		case fccANIM:
			var anim [6]byte
			if _, err := io.ReadFull(cr, anim[:]); err != nil {
				return codec.Header{}, malformed(codec.FormatWebP, -1, "reading ANIM chunk", err)
			}
			// The background color is a hint only. Disposal clears to
			// transparent, as browsers and platform decoders do.
			hdr.LoopCount = int(binary.LittleEndian.Uint16(anim[4:]))
			seenANIM = true
		case fccANMF:
			if !seenANIM {
				return codec.Header{}, malformed(codec.FormatWebP, len(b.frames), "ANMF chunk before ANIM chunk", nil)
			}
			if err := b.limits.CheckFrames(len(b.frames) + 1); err != nil {
				return codec.Header{}, err
			}
			payload := make([]byte, n)
			if _, err := io.ReadFull(cr, payload); err != nil {
				return codec.Header{}, malformed(codec.FormatWebP, len(b.frames), "reading ANMF chunk", err)
			}
			b.frames = append(b.frames, payload)
		default:
			logger.Debugf("webp: skipping %q chunk", id[:])
		}
	}
	if len(b.frames) == 0 {
		return codec.Header{}, malformed(codec.FormatWebP, -1, "no frames", nil)
	}

	hdr.FrameCount = len(b.frames)
	logger.Debugf("webp: %dx%d, %d frames, loop count %d", hdr.Width, hdr.Height, hdr.FrameCount, hdr.LoopCount)
	return hdr, nil
}

func (b *webpBackend) openStill(data []byte) (codec.Header, error) {
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return codec.Header{}, malformed(codec.FormatWebP, -1, "reading header", err)
	}
	if err := b.limits.CheckCanvas(cfg.Width, cfg.Height); err != nil {
		return codec.Header{}, err
	}
	b.width, b.height = cfg.Width, cfg.Height
	b.still = data
	return codec.Header{Width: b.width, Height: b.height, LoopCount: 1, FrameCount: 1}, nil
}

func (b *webpBackend) NextFrame() (*frame.Delta, error) {
	if !b.opened {
		return nil, fmt.Errorf("platform: webp backend not opened")
	}
	if b.still != nil {
		return b.nextStill()
	}
	i := b.next
	if i >= len(b.frames) {
		return nil, io.EOF
	}
	b.next++
	d, err := b.decodeFrame(i, b.frames[i])
	if err != nil {
		return nil, err
	}
	// Decoded frames are not needed again.
	b.frames[i] = nil
	d.Final = i == len(b.frames)-1
	return d, nil
}

func (b *webpBackend) nextStill() (*frame.Delta, error) {
	if b.next > 0 {
		return nil, io.EOF
	}
	b.next++
	img, err := webp.Decode(bytes.NewReader(b.still))
	if err != nil {
		return nil, malformed(codec.FormatWebP, 0, "decoding image", err)
	}
	b.still = nil
	return &frame.Delta{
		Rect:    image.Rect(0, 0, b.width, b.height),
		Patch:   toNRGBA(img),
		Dispose: frame.DisposeNone,
		Blend:   frame.BlendSource,
		Final:   true,
	}, nil
}

// decodeFrame decodes one ANMF payload: a 16 byte frame header followed by
// the frame's ALPH, VP8 or VP8L chunks.
func (b *webpBackend) decodeFrame(i int, payload []byte) (*frame.Delta, error) {
	if len(payload) < anmfHeaderLen {
		return nil, malformed(codec.FormatWebP, i, "short ANMF chunk", nil)
	}
	x := 2 * int(uint24(payload[0:]))
	y := 2 * int(uint24(payload[3:]))
	w := 1 + int(uint24(payload[6:]))
	h := 1 + int(uint24(payload[9:]))
	duration := time.Duration(uint24(payload[12:])) * time.Millisecond
	flags := payload[15]

	rect := image.Rect(x, y, x+w, y+h)
	if !rect.In(image.Rect(0, 0, b.width, b.height)) {
		return nil, malformed(codec.FormatWebP, i, fmt.Sprintf("frame bounds %v larger than %dx%d canvas", rect, b.width, b.height), nil)
	}

	// The last four header bytes stand in for the list type, so the frame
	// data chunks can be walked as a RIFF list.
	_, chunks, err := riff.NewListReader(uint32(len(payload)-12), bytes.NewReader(payload[12:]))
	if err != nil {
		return nil, malformed(codec.FormatWebP, i, "reading frame data", err)
	}
	var alph, bitstream []byte
	var bitstreamID riff.FourCC
	for bitstream == nil {
		id, n, cr, err := chunks.Next()
		if err == io.EOF {
			return nil, malformed(codec.FormatWebP, i, "frame has no bitstream", nil)
		}
		if err != nil {
			return nil, malformed(codec.FormatWebP, i, "reading frame data", err)
		}
		switch id {
		case fccALPH, fccVP8, fccVP8L:
			data := make([]byte, n)
			if _, err := io.ReadFull(cr, data); err != nil {
				return nil, malformed(codec.FormatWebP, i, fmt.Sprintf("reading %q chunk", id[:]), err)
			}
			if id == fccALPH {
				alph = data
				continue
			}
			bitstream, bitstreamID = data, id
		}
	}

	var standalone []byte
	switch {
	case alph == nil:
		standalone = appendRIFF(nil, chunk{bitstreamID, bitstream})
	case bitstreamID == fccVP8:
		vp8x := make([]byte, 10)
		vp8x[0] = vp8xAlpha
		putUint24(vp8x[4:], uint32(w-1))
		putUint24(vp8x[7:], uint32(h-1))
		standalone = appendRIFF(nil, chunk{fccVP8X, vp8x}, chunk{fccALPH, alph}, chunk{fccVP8, bitstream})
	default:
		return nil, malformed(codec.FormatWebP, i, "ALPH chunk with a lossless bitstream", nil)
	}

	img, err := webp.Decode(bytes.NewReader(standalone))
	if err != nil {
		return nil, malformed(codec.FormatWebP, i, "decoding frame", err)
	}
	if got := img.Bounds(); got.Dx() != w || got.Dy() != h {
		return nil, malformed(codec.FormatWebP, i, fmt.Sprintf("bitstream size %dx%d does not match frame size %dx%d", got.Dx(), got.Dy(), w, h), nil)
	}

	d := &frame.Delta{
		Rect:     rect,
		Patch:    toNRGBA(img),
		Dispose:  frame.DisposeNone,
		Blend:    frame.BlendSourceOver,
		Duration: duration,
	}
	if flags&anmfDispose != 0 {
		d.Dispose = frame.DisposeRestoreBackground
	}
	if flags&anmfNoBlend != 0 {
		d.Blend = frame.BlendSource
	}
	return d, nil
}

func (b *webpBackend) Close() error {
	b.opened = false
	b.still = nil
	b.frames = nil
	return nil
}

type chunk struct {
	id   riff.FourCC
	data []byte
}

// appendRIFF appends a RIFF WEBP file made of chunks to dst.
func appendRIFF(dst []byte, chunks ...chunk) []byte {
	size := 4
	for _, c := range chunks {
		size += 8 + len(c.data) + len(c.data)&1
	}
	dst = append(dst, 'R', 'I', 'F', 'F')
	dst = binary.LittleEndian.AppendUint32(dst, uint32(size))
	dst = append(dst, fccWEBP[:]...)
	for _, c := range chunks {
		dst = append(dst, c.id[:]...)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.data)))
		dst = append(dst, c.data...)
		if len(c.data)&1 != 0 {
			dst = append(dst, 0)
		}
	}
	return dst
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putUint24(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}
