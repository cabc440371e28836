// Package animdecode decodes animated GIF, HEIF and WebP images frame by
// frame, lets a caller transform every composited frame, and returns a
// replayable Sequence that can be queried for the frame shown at any time.
//
// A decode session runs synchronously on the calling goroutine. Sessions
// share no mutable state and may run concurrently.
package animdecode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	internallogging "github.com/pion/animdecode/internal/logging"
	"github.com/pion/animdecode/pkg/codec"
	_ "github.com/pion/animdecode/pkg/codec/gif" // software GIF backend
	_ "github.com/pion/animdecode/pkg/codec/platform"
	"github.com/pion/animdecode/pkg/compositor"
	"github.com/pion/animdecode/pkg/frame"
	mio "github.com/pion/animdecode/pkg/io"
	"github.com/pion/animdecode/pkg/io/video"
)

// RepeatInfinite passed to WithRepeatCount makes the animation repeat
// forever.
const RepeatInfinite = -1

// Decoder holds the configuration of decode sessions. A Decoder is
// immutable once built and safe for concurrent use.
type Decoder struct {
	level            int
	transform        video.TransformFunc
	selector         *codec.Selector
	limits           codec.Limits
	format           codec.Format
	repeatCount      *int
	minFrameDuration time.Duration
	loggerFactory    logging.LoggerFactory
}

// DecoderOption is a type for specifying Decoder options
type DecoderOption func(*Decoder)

// WithCapabilityLevel sets the host capability level used to pick the
// backend. The default is codec.NativeThreshold.
func WithCapabilityLevel(level int) DecoderOption {
	return func(d *Decoder) {
		d.level = level
	}
}

// WithTransform sets the transformation applied to every composited frame.
// Use video.Merge to chain several.
func WithTransform(transform video.TransformFunc) DecoderOption {
	return func(d *Decoder) {
		d.transform = transform
	}
}

// WithSelector replaces the selector built from the registered backends.
func WithSelector(selector *codec.Selector) DecoderOption {
	return func(d *Decoder) {
		d.selector = selector
	}
}

// WithLimits replaces codec.DefaultLimits.
func WithLimits(limits codec.Limits) DecoderOption {
	return func(d *Decoder) {
		d.limits = limits
	}
}

// WithFormat declares the source format instead of sniffing it.
func WithFormat(format codec.Format) DecoderOption {
	return func(d *Decoder) {
		d.format = format
	}
}

// WithRepeatCount overrides the repeat count stored in the stream. n is the
// number of repeats after the first play, or RepeatInfinite.
func WithRepeatCount(n int) DecoderOption {
	return func(d *Decoder) {
		d.repeatCount = &n
	}
}

// WithMinFrameDuration raises frame durations shorter than min to min.
func WithMinFrameDuration(min time.Duration) DecoderOption {
	return func(d *Decoder) {
		d.minFrameDuration = min
	}
}

// WithLoggerFactory sets the factory of the session loggers.
func WithLoggerFactory(factory logging.LoggerFactory) DecoderOption {
	return func(d *Decoder) {
		d.loggerFactory = factory
	}
}

// NewDecoder constructs Decoder with given variadic options
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := Decoder{
		level:         codec.NativeThreshold,
		limits:        codec.DefaultLimits(),
		loggerFactory: internallogging.Factory(),
	}

	for _, opt := range opts {
		opt(&d)
	}

	if d.selector == nil {
		d.selector = codec.DefaultSelector()
	}
	if d.repeatCount != nil && *d.repeatCount < RepeatInfinite {
		n := RepeatInfinite
		d.repeatCount = &n
	}

	return &d
}

// Decode runs one decode session with a Decoder built from opts.
func Decode(ctx context.Context, r io.Reader, opts ...DecoderOption) (*Sequence, error) {
	return NewDecoder(opts...).Decode(ctx, r)
}

// Decode reads an animated image from r and returns its frames. The whole
// session fails on the first error and no partial Sequence is returned.
// Errors are typed: *codec.MalformedStreamError, *codec.UnsupportedFormatError,
// *codec.ResourceLimitError, *TransformationError or *CancelledError.
//
// ctx is checked between frames. The transformation runs on the calling
// goroutine, so a slow transformation stalls the session.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*Sequence, error) {
	s := &session{
		Decoder: d,
		id:      uuid.New(),
		log:     d.loggerFactory.NewLogger("animdecode"),
	}
	return s.run(ctx, r)
}

type session struct {
	*Decoder
	id  uuid.UUID
	log logging.LeveledLogger
}

func (s *session) run(ctx context.Context, r io.Reader) (*Sequence, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Session: s.id, Frame: -1, Err: err}
	}

	pr := mio.NewPositionReader(r)
	format := s.format
	if format == codec.FormatUnknown {
		// A short stream is reported by the backend.
		head, _ := pr.Peek(codec.SniffLen)
		format = codec.Sniff(head)
		if format == codec.FormatUnknown {
			return nil, &codec.UnsupportedFormatError{
				Format:    codec.FormatUnknown,
				Level:     s.level,
				Threshold: -1,
				Reason:    "unrecognized stream",
			}
		}
	}

	nb, err := s.selector.Select(format, s.level)
	if err != nil {
		return nil, err
	}
	s.log.Infof("[%s] decoding %s with %s backend at capability level %d", s.id, format, nb.Name, s.level)

	backend := nb.Build(s.limits)
	defer func() {
		if err := backend.Close(); err != nil {
			s.log.Warnf("[%s] closing %s backend: %v", s.id, nb.Name, err)
		}
	}()

	hdr, err := backend.Open(pr)
	if err != nil {
		return nil, s.codecError(format, -1, err)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, &codec.MalformedStreamError{
			Format: format,
			Offset: -1,
			Frame:  -1,
			Reason: fmt.Sprintf("invalid canvas size %dx%d", hdr.Width, hdr.Height),
		}
	}
	if err := s.limits.CheckCanvas(hdr.Width, hdr.Height); err != nil {
		return nil, err
	}

	comp, err := compositor.New(hdr.Width, hdr.Height, hdr.Background)
	if err != nil {
		return nil, err
	}
	var scratch *frame.Buffer
	if s.transform != nil {
		if scratch, err = frame.NewBuffer(hdr.Width, hdr.Height); err != nil {
			return nil, err
		}
	}

	seq := &Sequence{
		session:   s.id,
		width:     hdr.Width,
		height:    hdr.Height,
		loopCount: hdr.LoopCount,
	}
	if hdr.FrameCount > 0 {
		seq.frames = make([]*frame.Buffer, 0, hdr.FrameCount)
		seq.durations = make([]time.Duration, 0, hdr.FrameCount)
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Debugf("[%s] cancelled before frame %d", s.id, i)
			return nil, &CancelledError{Session: s.id, Frame: i, Err: err}
		}

		delta, err := backend.NextFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, s.codecError(format, i, err)
		}

		if err := comp.Composite(delta); err != nil {
			return nil, &codec.MalformedStreamError{
				Format: format,
				Offset: -1,
				Frame:  i,
				Reason: "invalid frame",
				Err:    err,
			}
		}

		var snapshot *frame.Buffer
		if s.transform != nil {
			// The transformation gets a copy so that the canonical canvas
			// stays untouched for the next disposal.
			if err := scratch.CopyFrom(comp.Canvas()); err != nil {
				return nil, err
			}
			if err := s.transform(scratch); err != nil {
				s.log.Debugf("[%s] transformation failed on frame %d: %v", s.id, i, err)
				return nil, &TransformationError{Session: s.id, Frame: i, Err: err}
			}
			snapshot = scratch.Clone()
		} else {
			snapshot = comp.Canvas().Clone()
		}

		duration := delta.DisplayDuration()
		if delta.Duration == 0 {
			s.log.Debugf("[%s] frame %d has no duration, using %v", s.id, i, duration)
		}
		if duration < s.minFrameDuration {
			s.log.Warnf("[%s] frame %d duration %v raised to %v", s.id, i, duration, s.minFrameDuration)
			duration = s.minFrameDuration
		}

		seq.frames = append(seq.frames, snapshot)
		seq.durations = append(seq.durations, duration)
		s.log.Debugf("[%s] frame %d: %v %s/%s, %v", s.id, i, delta.Rect, delta.Dispose, delta.Blend, duration)
	}

	if len(seq.frames) == 0 {
		return nil, &codec.MalformedStreamError{
			Format: format,
			Offset: pr.Offset(),
			Frame:  -1,
			Reason: "no frames",
		}
	}

	if s.repeatCount != nil {
		if *s.repeatCount == RepeatInfinite {
			seq.loopCount = 0
		} else {
			seq.loopCount = *s.repeatCount + 1
		}
	}
	seq.index()

	s.log.Infof("[%s] decoded %d frames, %v per loop, loop count %d", s.id, seq.Len(), seq.TotalDuration(), seq.LoopCount())
	return seq, nil
}

// codecError makes sure an error from a backend carries one of the codec
// error types.
func (s *session) codecError(format codec.Format, frameIndex int, err error) error {
	var (
		malformed   *codec.MalformedStreamError
		unsupported *codec.UnsupportedFormatError
		limit       *codec.ResourceLimitError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &limit):
		return err
	case errors.As(err, &unsupported):
		if unsupported.Level == 0 {
			unsupported.Level = s.level
		}
		return err
	default:
		return &codec.MalformedStreamError{
			Format: format,
			Offset: -1,
			Frame:  frameIndex,
			Err:    err,
		}
	}
}
