package frame

import (
	"fmt"
	"image"
	"time"
)

// DefaultFrameDuration replaces a zero frame duration. Zero-delay frames are
// shown for this long by the major browsers and platform decoders.
const DefaultFrameDuration = 100 * time.Millisecond

// Dispose tells the compositor what to do with a frame's rectangle before
// the next frame is composited.
type Dispose int

const (
	// DisposeNone leaves the canvas as-is.
	DisposeNone Dispose = iota
	// DisposeRestoreBackground clears the frame rectangle to the background color.
	DisposeRestoreBackground
	// DisposeRestorePrevious restores the frame rectangle to its content from
	// just before the frame was composited.
	DisposeRestorePrevious
)

func (d Dispose) String() string {
	switch d {
	case DisposeNone:
		return "none"
	case DisposeRestoreBackground:
		return "background"
	case DisposeRestorePrevious:
		return "previous"
	default:
		return fmt.Sprintf("Dispose(%d)", int(d))
	}
}

// Blend tells the compositor how a patch combines with the canvas.
type Blend int

const (
	// BlendSource overwrites the canvas pixels.
	BlendSource Blend = iota
	// BlendSourceOver alpha-composites the patch onto the canvas.
	BlendSourceOver
)

func (b Blend) String() string {
	switch b {
	case BlendSource:
		return "source"
	case BlendSourceOver:
		return "source-over"
	default:
		return fmt.Sprintf("Blend(%d)", int(b))
	}
}

// Delta is one decoded animation step as produced by a codec backend.
type Delta struct {
	// Rect is the canvas region covered by Patch.
	Rect image.Rectangle
	// Patch holds Rect.Dx() x Rect.Dy() pixels. Patch.Rect starts at the origin.
	Patch *image.NRGBA
	// Dispose is applied to Rect before the next frame is composited.
	Dispose Dispose
	// Blend is how Patch is combined with the canvas.
	Blend Blend
	// Duration is the display time of the composited frame. Zero means the
	// codec did not specify one.
	Duration time.Duration
	// Final is set when the backend knows no frame follows.
	Final bool
}

// Validate checks that d is consistent and fits a canvas of the given size.
func (d *Delta) Validate(width, height int) error {
	if d.Patch == nil {
		return fmt.Errorf("frame: delta has no patch")
	}
	if d.Rect.Empty() {
		return fmt.Errorf("frame: empty delta rectangle %v", d.Rect)
	}
	if !d.Rect.In(image.Rect(0, 0, width, height)) {
		return fmt.Errorf("frame: delta rectangle %v outside %dx%d canvas", d.Rect, width, height)
	}
	if d.Patch.Rect.Dx() != d.Rect.Dx() || d.Patch.Rect.Dy() != d.Rect.Dy() {
		return fmt.Errorf("frame: patch size %v does not match rectangle %v", d.Patch.Rect, d.Rect)
	}
	if d.Duration < 0 {
		return fmt.Errorf("frame: negative duration %v", d.Duration)
	}
	return nil
}

// DisplayDuration returns d.Duration, coerced to DefaultFrameDuration when zero.
func (d *Delta) DisplayDuration() time.Duration {
	if d.Duration == 0 {
		return DefaultFrameDuration
	}
	return d.Duration
}
