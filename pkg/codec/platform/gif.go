package platform

import (
	"bytes"
	"fmt"
	"image/color"
	"image/gif"
	"io"
	"time"

	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

type gifBackend struct {
	limits codec.Limits
	g      *gif.GIF
	next   int
}

// NewGIF returns the native GIF backend. It decodes the whole stream with
// image/gif in Open and hands out the frames one by one.
func NewGIF(limits codec.Limits) codec.Backend {
	return &gifBackend{limits: limits}
}

func (b *gifBackend) Open(r io.Reader) (codec.Header, error) {
	if b.g != nil {
		return codec.Header{}, fmt.Errorf("platform: gif backend already opened")
	}
	data, err := readAll(r, b.limits)
	if err != nil {
		return codec.Header{}, err
	}

	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return codec.Header{}, malformed(codec.FormatGIF, -1, "reading header", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return codec.Header{}, malformed(codec.FormatGIF, -1, fmt.Sprintf("invalid canvas size %dx%d", cfg.Width, cfg.Height), nil)
	}
	if err := b.limits.CheckCanvas(cfg.Width, cfg.Height); err != nil {
		return codec.Header{}, err
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return codec.Header{}, malformed(codec.FormatGIF, -1, "decoding frames", err)
	}
	if len(g.Image) == 0 {
		return codec.Header{}, malformed(codec.FormatGIF, -1, "no image data", nil)
	}
	if err := b.limits.CheckFrames(len(g.Image)); err != nil {
		return codec.Header{}, err
	}
	b.g = g

	hdr := codec.Header{
		Width:      g.Config.Width,
		Height:     g.Config.Height,
		LoopCount:  gifPlayCount(g.LoopCount),
		FrameCount: len(g.Image),
	}
	logger.Debugf("gif: %dx%d, %d frames, loop count %d", hdr.Width, hdr.Height, hdr.FrameCount, hdr.LoopCount)
	return hdr, nil
}

func (b *gifBackend) NextFrame() (*frame.Delta, error) {
	if b.g == nil {
		return nil, fmt.Errorf("platform: gif backend not opened")
	}
	i := b.next
	if i >= len(b.g.Image) {
		return nil, io.EOF
	}
	b.next++

	img := b.g.Image[i]
	rect := img.Bounds()
	if rect.Empty() {
		return nil, malformed(codec.FormatGIF, i, fmt.Sprintf("empty image rectangle %v", rect), nil)
	}

	d := &frame.Delta{
		Rect:     rect,
		Patch:    toNRGBA(img),
		Dispose:  gifDispose(b.g.Disposal, i),
		Blend:    frame.BlendSource,
		Duration: time.Duration(b.g.Delay[i]) * 10 * time.Millisecond,
		Final:    i == len(b.g.Image)-1,
	}
	if hasTransparent(img.Palette) {
		d.Blend = frame.BlendSourceOver
	}
	return d, nil
}

func (b *gifBackend) Close() error {
	b.g = nil
	return nil
}

// gifPlayCount maps image/gif's LoopCount, where -1 means no loop extension,
// to a number of plays.
func gifPlayCount(loopCount int) int {
	switch {
	case loopCount < 0:
		return 1
	case loopCount == 0:
		return 0
	default:
		return loopCount + 1
	}
}

func gifDispose(disposal []byte, i int) frame.Dispose {
	if i >= len(disposal) {
		return frame.DisposeNone
	}
	switch disposal[i] {
	case gif.DisposalBackground:
		return frame.DisposeRestoreBackground
	case gif.DisposalPrevious:
		return frame.DisposeRestorePrevious
	default:
		return frame.DisposeNone
	}
}

// hasTransparent reports whether image/gif substituted a transparent entry
// into p, which it does for frames with a transparent color index.
func hasTransparent(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a == 0 {
			return true
		}
	}
	return false
}
