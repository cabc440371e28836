// Package gif implements the bundled software backend for animated GIF.
//
// The backend parses the stream block by block and decodes one image per
// NextFrame call, so memory use does not depend on the number of frames.
// It registers itself as the GIF software backend when imported.
//
// The GIF specification is at https://www.w3.org/Graphics/GIF/spec-gif89a.txt.
package gif

import (
	"compress/lzw"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/pion/animdecode/internal/logging"
	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
	mio "github.com/pion/animdecode/pkg/io"
)

// Name is the backend name used for registration.
const Name = "gif"

var logger = logging.NewLogger("animdecode/codec/gif")

func init() {
	codec.RegisterSoftware(codec.FormatGIF, codec.NamedBackend{
		Name:    Name,
		Builder: NewBackend,
	})
}

// Masks etc.
const (
	// Fields.
	fColorTable     = 1 << 7
	fColorTableSize = 7

	// Image fields.
	ifLocalColorTable = 1 << 7
	ifInterlace       = 1 << 6

	// Graphic control flags.
	gcTransparentColorSet = 1 << 0
	gcDisposalMethod      = 7 << 2
)

// Section indicators.
const (
	sExtension       = 0x21
	sImageDescriptor = 0x2C
	sTrailer         = 0x3B
)

// Extensions.
const (
	eText           = 0x01
	eGraphicControl = 0xF9
	eComment        = 0xFE
	eApplication    = 0xFF
)

// Disposal methods as stored in the graphic control extension.
const (
	disposalUnspecified = 0
	disposalNone        = 1
	disposalBackground  = 2
	disposalPrevious    = 3
)

// graphicControl is the state of the most recent graphic control extension.
// It applies to the next image only.
type graphicControl struct {
	disposal         byte
	delay            int
	hasTransparent   bool
	transparentIndex byte
}

type backend struct {
	limits codec.Limits

	r             *mio.PositionReader
	width, height int
	globalPalette []color.NRGBA
	loopCount     int
	gc            graphicControl

	frameIndex int
	done       bool
	err        error
	closed     bool

	indices []byte
	tmp     [768]byte
}

// NewBackend returns a software GIF backend bounded by limits.
func NewBackend(limits codec.Limits) codec.Backend {
	return &backend{limits: limits, loopCount: -1}
}

func (b *backend) Open(r io.Reader) (codec.Header, error) {
	if b.r != nil {
		return codec.Header{}, fmt.Errorf("gif: backend already opened")
	}
	b.r = mio.NewPositionReader(r)

	if err := b.readHeaderAndScreenDescriptor(); err != nil {
		b.err = err
		return codec.Header{}, err
	}

	imageNext, err := b.scan()
	if err != nil {
		b.err = err
		return codec.Header{}, err
	}
	if !imageNext {
		b.err = b.malformed("no image data", nil)
		return codec.Header{}, b.err
	}

	logger.Debugf("opened %dx%d canvas, loop count %d", b.width, b.height, b.playCount())
	return codec.Header{
		Width:      b.width,
		Height:     b.height,
		LoopCount:  b.playCount(),
		Background: color.NRGBA{},
		FrameCount: -1,
	}, nil
}

// playCount converts the NETSCAPE loop count, which counts repeats after
// the first play, into a number of plays. No loop extension means the
// animation plays once.
func (b *backend) playCount() int {
	switch {
	case b.loopCount < 0:
		return 1
	case b.loopCount == 0:
		return 0
	default:
		return b.loopCount + 1
	}
}

func (b *backend) NextFrame() (*frame.Delta, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.closed {
		return nil, fmt.Errorf("gif: backend closed")
	}
	if b.done {
		return nil, io.EOF
	}

	if err := b.limits.CheckFrames(b.frameIndex + 1); err != nil {
		b.err = err
		return nil, err
	}

	d, err := b.readImage()
	if err != nil {
		b.err = err
		return nil, err
	}
	b.frameIndex++

	// Look ahead to the next image so that the last frame is flagged. An
	// error here belongs to the stream after this frame and is reported by
	// the next call.
	imageNext, err := b.scan()
	switch {
	case err != nil:
		b.err = err
	case !imageNext:
		b.done = true
		d.Final = true
	}
	return d, nil
}

func (b *backend) Close() error {
	b.closed = true
	b.indices = nil
	b.globalPalette = nil
	b.r = nil
	return nil
}

func (b *backend) malformed(reason string, err error) error {
	var off int64 = -1
	if b.r != nil {
		off = b.r.Offset()
	}
	idx := b.frameIndex
	if b.r == nil || (b.frameIndex == 0 && b.width == 0) {
		idx = -1
	}
	return &codec.MalformedStreamError{
		Format: codec.FormatGIF,
		Offset: off,
		Frame:  idx,
		Reason: reason,
		Err:    err,
	}
}

func (b *backend) readHeaderAndScreenDescriptor() error {
	if err := mio.ReadFull(b.r, b.tmp[:13]); err != nil {
		return b.malformed("reading header", err)
	}
	version := string(b.tmp[:6])
	if version != "GIF87a" && version != "GIF89a" {
		return b.malformed(fmt.Sprintf("can't recognize format %q", version), nil)
	}
	width := int(readUint16(b.tmp[6:8]))
	height := int(readUint16(b.tmp[8:10]))
	if width == 0 || height == 0 {
		return b.malformed(fmt.Sprintf("invalid canvas size %dx%d", width, height), nil)
	}
	if err := b.limits.CheckCanvas(width, height); err != nil {
		return err
	}
	b.width, b.height = width, height

	if fields := b.tmp[10]; fields&fColorTable != 0 {
		palette, err := b.readColorTable(fields)
		if err != nil {
			return err
		}
		b.globalPalette = palette
	}
	// Byte 11 is the background index. Browsers and platform decoders clear
	// disposed regions to transparent, so it is not used.
	return nil
}

func (b *backend) readColorTable(fields byte) ([]color.NRGBA, error) {
	n := 1 << (1 + uint(fields&fColorTableSize))
	if err := mio.ReadFull(b.r, b.tmp[:3*n]); err != nil {
		return nil, b.malformed("reading color table", err)
	}
	palette := make([]color.NRGBA, n)
	for i := range palette {
		palette[i] = color.NRGBA{R: b.tmp[3*i], G: b.tmp[3*i+1], B: b.tmp[3*i+2], A: 0xff}
	}
	return palette, nil
}

// scan consumes extensions up to the next image descriptor or the trailer.
// It reports whether an image descriptor follows.
func (b *backend) scan() (bool, error) {
	for {
		c, err := b.r.ReadByte()
		if err != nil {
			return false, b.malformed("reading block", errTruncated)
		}
		switch c {
		case sExtension:
			if err := b.readExtension(); err != nil {
				return false, err
			}
		case sImageDescriptor:
			return true, nil
		case sTrailer:
			return false, nil
		default:
			return false, b.malformed(fmt.Sprintf("unknown block type 0x%.2x", c), nil)
		}
	}
}

func (b *backend) readExtension() error {
	label, err := b.r.ReadByte()
	if err != nil {
		return b.malformed("reading extension", errTruncated)
	}
	switch label {
	case eGraphicControl:
		return b.readGraphicControl()
	case eApplication:
		return b.readApplication()
	case eText:
		// A plain text block consumes the preceding graphic control
		// extension. Its text is never rendered.
		b.gc = graphicControl{}
	case eComment:
	default:
		logger.Debugf("skipping unknown extension 0x%.2x", label)
	}
	if err := skipSubBlocks(b.r); err != nil {
		return b.malformed("reading extension", err)
	}
	return nil
}

func (b *backend) readGraphicControl() error {
	if err := mio.ReadFull(b.r, b.tmp[:6]); err != nil {
		return b.malformed("reading graphic control extension", err)
	}
	if b.tmp[0] != 4 {
		return b.malformed(fmt.Sprintf("invalid graphic control extension block size %d", b.tmp[0]), nil)
	}
	if b.tmp[5] != 0 {
		return b.malformed("graphic control extension not terminated", nil)
	}
	flags := b.tmp[1]
	b.gc = graphicControl{
		disposal:         (flags & gcDisposalMethod) >> 2,
		delay:            int(readUint16(b.tmp[2:4])),
		hasTransparent:   flags&gcTransparentColorSet != 0,
		transparentIndex: b.tmp[4],
	}
	return nil
}

func (b *backend) readApplication() error {
	n, err := b.r.ReadByte()
	if err != nil {
		return b.malformed("reading application extension", errTruncated)
	}
	if err := mio.ReadFull(b.r, b.tmp[:n]); err != nil {
		return b.malformed("reading application extension", err)
	}
	id := string(b.tmp[:n])
	if id == "NETSCAPE2.0" || id == "ANIMEXTS1.0" {
		size, err := b.r.ReadByte()
		if err != nil {
			return b.malformed("reading loop extension", errTruncated)
		}
		if size == 0 {
			return nil
		}
		if err := mio.ReadFull(b.r, b.tmp[:size]); err != nil {
			return b.malformed("reading loop extension", err)
		}
		if size >= 3 && b.tmp[0] == 1 {
			b.loopCount = int(readUint16(b.tmp[1:3]))
		}
	}
	if err := skipSubBlocks(b.r); err != nil {
		return b.malformed("reading application extension", err)
	}
	return nil
}

func (b *backend) readImage() (*frame.Delta, error) {
	if err := mio.ReadFull(b.r, b.tmp[:9]); err != nil {
		return nil, b.malformed("reading image descriptor", err)
	}
	left := int(readUint16(b.tmp[0:2]))
	top := int(readUint16(b.tmp[2:4]))
	width := int(readUint16(b.tmp[4:6]))
	height := int(readUint16(b.tmp[6:8]))
	fields := b.tmp[8]

	rect := image.Rect(left, top, left+width, top+height)
	if rect.Empty() {
		return nil, b.malformed(fmt.Sprintf("empty image rectangle %v", rect), nil)
	}
	if !rect.In(image.Rect(0, 0, b.width, b.height)) {
		return nil, b.malformed(fmt.Sprintf("frame bounds %v larger than %dx%d canvas", rect, b.width, b.height), nil)
	}

	palette := b.globalPalette
	if fields&ifLocalColorTable != 0 {
		local, err := b.readColorTable(fields)
		if err != nil {
			return nil, err
		}
		palette = local
	}
	if len(palette) == 0 {
		return nil, b.malformed("no color table", nil)
	}

	gc := b.gc
	b.gc = graphicControl{}
	if gc.hasTransparent && int(gc.transparentIndex) < len(palette) {
		palette = append([]color.NRGBA(nil), palette...)
		palette[gc.transparentIndex] = color.NRGBA{}
	}

	indices, err := b.readImageData(width * height)
	if err != nil {
		return nil, err
	}

	patch := image.NewNRGBA(image.Rect(0, 0, width, height))
	rows := rowOrder(height, fields&ifInterlace != 0)
	for sy, y := range rows {
		src := indices[sy*width : (sy+1)*width]
		dst := patch.Pix[y*patch.Stride : y*patch.Stride+4*width]
		for x, idx := range src {
			if int(idx) >= len(palette) {
				return nil, b.malformed(fmt.Sprintf("invalid pixel value %d for %d color palette", idx, len(palette)), nil)
			}
			c := palette[idx]
			dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = c.R, c.G, c.B, c.A
		}
	}

	d := &frame.Delta{
		Rect:     rect,
		Patch:    patch,
		Dispose:  disposal(gc.disposal),
		Blend:    frame.BlendSource,
		Duration: time.Duration(gc.delay) * 10 * time.Millisecond,
	}
	if gc.hasTransparent {
		d.Blend = frame.BlendSourceOver
	}
	return d, nil
}

func (b *backend) readImageData(n int) ([]byte, error) {
	litWidth, err := b.r.ReadByte()
	if err != nil {
		return nil, b.malformed("reading image data", errTruncated)
	}
	if litWidth < 2 || litWidth > 8 {
		return nil, b.malformed(fmt.Sprintf("pixel size in decode out of range: %d", litWidth), nil)
	}

	if cap(b.indices) < n {
		b.indices = make([]byte, n)
	}
	indices := b.indices[:n]

	br := &blockReader{r: b.r}
	lzwr := lzw.NewReader(br, lzw.LSB, int(litWidth))
	defer lzwr.Close()

	if _, err := io.ReadFull(lzwr, indices); err != nil {
		if isTruncation(br.err) {
			return nil, b.malformed("truncated image data", br.err)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, b.malformed("not enough image data", nil)
		}
		return nil, b.malformed("decoding image data", err)
	}
	// The LZW stream must end with the frame. A missing end code is
	// tolerated as long as the frame is complete.
	var extra [1]byte
	if n, err := lzwr.Read(extra[:]); n != 0 || (err != io.EOF && err != io.ErrUnexpectedEOF) {
		if isTruncation(br.err) {
			return nil, b.malformed("truncated image data", br.err)
		}
		if err != nil {
			return nil, b.malformed("decoding image data", err)
		}
		return nil, b.malformed("too much image data", nil)
	}
	if err := br.drain(); err != nil {
		return nil, b.malformed("truncated image data", err)
	}
	return indices, nil
}

// rowOrder maps the i-th row stored in the stream to its y coordinate.
func rowOrder(height int, interlaced bool) []int {
	rows := make([]int, 0, height)
	if !interlaced {
		for y := 0; y < height; y++ {
			rows = append(rows, y)
		}
		return rows
	}
	for _, pass := range []struct{ start, skip int }{{0, 8}, {4, 8}, {2, 4}, {1, 2}} {
		for y := pass.start; y < height; y += pass.skip {
			rows = append(rows, y)
		}
	}
	return rows
}

func disposal(m byte) frame.Dispose {
	switch m {
	case disposalBackground:
		return frame.DisposeRestoreBackground
	case disposalPrevious:
		return frame.DisposeRestorePrevious
	default:
		// disposalUnspecified, disposalNone and the reserved values 4-7.
		return frame.DisposeNone
	}
}

func readUint16(b []uint8) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
