// Package compositor reconstructs full animation frames from codec deltas.
//
// The compositor owns a single canonical canvas. Before a frame is
// composited, the disposal of the previous frame is applied; the frame's
// patch is then blended in. RestorePrevious disposal keeps a copy of the
// affected rectangle only, so the extra memory is bounded by the largest
// such rectangle rather than by the number of frames.
package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pion/animdecode/pkg/frame"
)

// State is the state of the frame slot held by the canvas.
type State int

const (
	// StateEmpty means no frame has been composited yet.
	StateEmpty State = iota
	// StateComposited means the canvas holds a complete frame.
	StateComposited
	// StateDisposed means the last frame's disposal has been applied and the
	// canvas is waiting for the next frame.
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateComposited:
		return "composited"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Compositor applies frame deltas to a canonical canvas. It is not safe for
// concurrent use.
type Compositor struct {
	canvas     *frame.Buffer
	background color.NRGBA
	state      State

	lastRect    image.Rectangle
	lastDispose frame.Dispose
	saved       regionBuffer
}

// New creates a compositor whose canvas has the given size and starts
// filled with background.
func New(width, height int, background color.NRGBA) (*Compositor, error) {
	canvas, err := frame.NewBuffer(width, height)
	if err != nil {
		return nil, err
	}
	c := &Compositor{
		canvas:     canvas,
		background: background,
	}
	c.Reset()
	return c, nil
}

// Canvas returns the canonical canvas. It is mutated by the next call to
// Composite; callers that keep pixels must copy them.
func (c *Compositor) Canvas() *frame.Buffer {
	return c.canvas
}

// State returns the current state.
func (c *Compositor) State() State {
	return c.state
}

// SavedBytes returns the capacity of the RestorePrevious region buffer.
func (c *Compositor) SavedBytes() int {
	return cap(c.saved.buffer)
}

// Reset returns the compositor to StateEmpty with a background canvas. The
// region buffer keeps its storage.
func (c *Compositor) Reset() {
	c.canvas.Fill(c.canvas.Bounds(), c.background)
	c.state = StateEmpty
	c.lastRect = image.Rectangle{}
	c.lastDispose = frame.DisposeNone
	c.saved.valid = false
}

// Composite disposes the previous frame, if any, and blends d onto the
// canvas. d must fit inside the canvas; a delta that does not is an error
// and leaves the canvas untouched.
func (c *Compositor) Composite(d *frame.Delta) error {
	if err := d.Validate(c.canvas.Width(), c.canvas.Height()); err != nil {
		return err
	}

	if c.state == StateComposited {
		c.dispose()
	}

	if d.Dispose == frame.DisposeRestorePrevious {
		c.saved.store(c.canvas, d.Rect)
	}

	switch d.Blend {
	case frame.BlendSource:
		c.copyPatch(d)
	default:
		c.blendPatch(d)
	}

	c.lastRect = d.Rect
	c.lastDispose = d.Dispose
	c.state = StateComposited
	return nil
}

func (c *Compositor) dispose() {
	switch c.lastDispose {
	case frame.DisposeRestoreBackground:
		c.canvas.Fill(c.lastRect, c.background)
	case frame.DisposeRestorePrevious:
		c.saved.restore(c.canvas)
	}
	c.state = StateDisposed
}

func (c *Compositor) copyPatch(d *frame.Delta) {
	dst := c.canvas.Image()
	rowLen := d.Rect.Dx() * frame.BytesPerPixel
	for y := 0; y < d.Rect.Dy(); y++ {
		so := d.Patch.PixOffset(d.Patch.Rect.Min.X, d.Patch.Rect.Min.Y+y)
		do := dst.PixOffset(d.Rect.Min.X, d.Rect.Min.Y+y)
		copy(dst.Pix[do:do+rowLen], d.Patch.Pix[so:so+rowLen])
	}
}

func (c *Compositor) blendPatch(d *frame.Delta) {
	dst := c.canvas.Image()
	for y := 0; y < d.Rect.Dy(); y++ {
		so := d.Patch.PixOffset(d.Patch.Rect.Min.X, d.Patch.Rect.Min.Y+y)
		do := dst.PixOffset(d.Rect.Min.X, d.Rect.Min.Y+y)
		for x := 0; x < d.Rect.Dx(); x++ {
			s := d.Patch.Pix[so : so+4 : so+4]
			p := dst.Pix[do : do+4 : do+4]
			out := blendNRGBA(
				color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]},
				color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]},
			)
			p[0], p[1], p[2], p[3] = out.R, out.G, out.B, out.A
			so += 4
			do += 4
		}
	}
}

// blendNRGBA composites src over dst on non-premultiplied pixels with the
// integer arithmetic of libwebp's animation decoder. Only a fully
// transparent or fully opaque src skips the arithmetic, so a translucent
// src over a transparent dst may lose one unit per channel.
func blendNRGBA(src, dst color.NRGBA) color.NRGBA {
	switch src.A {
	case 0:
		return dst
	case 0xff:
		return src
	}

	sa := uint32(src.A)
	da := uint32(dst.A) * (256 - sa) >> 8
	outA := sa + da
	scale := uint32(1<<24) / outA
	mix := func(sc, dc uint8) uint8 {
		return uint8((uint32(sc)*sa + uint32(dc)*da) * scale >> 24)
	}

	return color.NRGBA{
		R: mix(src.R, dst.R),
		G: mix(src.G, dst.G),
		B: mix(src.B, dst.B),
		A: uint8(outA),
	}
}
