package codec

import (
	"image/color"
	"io"

	"github.com/pion/animdecode/pkg/frame"
)

// Header is the stream-level information returned by Backend.Open.
type Header struct {
	Width, Height int
	// LoopCount is the number of times the animation plays. 0 means forever.
	LoopCount int
	// Background is the color RestoreBackground disposal clears to.
	Background color.NRGBA
	// FrameCount is the number of frames, or -1 if the backend can not know
	// it without decoding the whole stream.
	FrameCount int
}

// Backend decodes one animated image stream into frame deltas. A Backend
// serves a single decode session: Open is called once, NextFrame until it
// returns io.EOF or an error, then Close. Backends are not safe for
// concurrent use.
type Backend interface {
	// Open parses the stream header. The backend does not take ownership of
	// r beyond the end of the session.
	Open(r io.Reader) (Header, error)
	// NextFrame returns the next delta, or io.EOF after the last one. The
	// returned delta is owned by the caller.
	NextFrame() (*frame.Delta, error)
	// Close releases the backend's buffers. It is safe to call more than once.
	Close() error
}

// BackendBuilder creates a fresh Backend bounded by limits.
type BackendBuilder func(limits Limits) Backend

// NamedBackend is a BackendBuilder with a name used in logs and errors.
type NamedBackend struct {
	Name string
	// Native is set for backends that stand for a platform codec.
	Native  bool
	Builder BackendBuilder
}

// Build returns a new Backend.
func (n NamedBackend) Build(limits Limits) Backend {
	return n.Builder(limits)
}

// Limits bound the allocations a hostile or corrupt stream can cause.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	// MaxPixels bounds Width*Height of the canvas.
	MaxPixels int64
	// MaxFrames bounds the number of frames in one session. 0 disables it.
	MaxFrames int
	// MaxBytes bounds the bytes a backend may buffer from its input.
	// 0 disables it.
	MaxBytes int64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:  16384,
		MaxHeight: 16384,
		MaxPixels: 64 << 20,
		MaxFrames: 10000,
		MaxBytes:  256 << 20,
	}
}

// CheckCanvas returns a *ResourceLimitError if a width x height canvas is
// not allowed by l. Non-positive sizes are not checked here.
func (l Limits) CheckCanvas(width, height int) error {
	if l.MaxWidth > 0 && width > l.MaxWidth {
		return &ResourceLimitError{Resource: "canvas width", Limit: int64(l.MaxWidth), Actual: int64(width)}
	}
	if l.MaxHeight > 0 && height > l.MaxHeight {
		return &ResourceLimitError{Resource: "canvas height", Limit: int64(l.MaxHeight), Actual: int64(height)}
	}
	if px := int64(width) * int64(height); l.MaxPixels > 0 && px > l.MaxPixels {
		return &ResourceLimitError{Resource: "canvas pixels", Limit: l.MaxPixels, Actual: px}
	}
	return nil
}

// CheckFrames returns a *ResourceLimitError if n frames are not allowed by l.
func (l Limits) CheckFrames(n int) error {
	if l.MaxFrames > 0 && n > l.MaxFrames {
		return &ResourceLimitError{Resource: "frames", Limit: int64(l.MaxFrames), Actual: int64(n)}
	}
	return nil
}

// CheckBytes returns a *ResourceLimitError if n buffered bytes are not
// allowed by l.
func (l Limits) CheckBytes(n int64) error {
	if l.MaxBytes > 0 && n > l.MaxBytes {
		return &ResourceLimitError{Resource: "bytes", Limit: l.MaxBytes, Actual: n}
	}
	return nil
}
