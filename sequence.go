package animdecode

import (
	"image"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pion/animdecode/pkg/frame"
	"github.com/pion/animdecode/pkg/io/video"
)

// Sequence is the decoded result of one session: every composited (and
// transformed) frame with its display duration. A Sequence is immutable
// and safe for concurrent use; accessors that return pixels return copies.
type Sequence struct {
	session       uuid.UUID
	width, height int
	loopCount     int
	frames        []*frame.Buffer
	durations     []time.Duration
	// ends[i] is the time at which frame i stops being shown in one loop.
	ends  []time.Duration
	total time.Duration
}

func (s *Sequence) index() {
	s.ends = make([]time.Duration, len(s.durations))
	var t time.Duration
	for i, d := range s.durations {
		t += d
		s.ends[i] = t
	}
	s.total = t
}

// SessionID returns the id of the decode session that produced s. It
// prefixes the session's log lines.
func (s *Sequence) SessionID() uuid.UUID { return s.session }

// Len returns the number of frames.
func (s *Sequence) Len() int { return len(s.frames) }

// Width returns the canvas width.
func (s *Sequence) Width() int { return s.width }

// Height returns the canvas height.
func (s *Sequence) Height() int { return s.height }

// LoopCount returns how many times the animation plays. 0 means forever.
func (s *Sequence) LoopCount() int { return s.loopCount }

// Duration returns the display duration of frame i, or 0 if i is out of
// range.
func (s *Sequence) Duration(i int) time.Duration {
	if i < 0 || i >= len(s.durations) {
		return 0
	}
	return s.durations[i]
}

// TotalDuration returns the duration of one loop.
func (s *Sequence) TotalDuration() time.Duration { return s.total }

// Frame returns a copy of frame i, or nil if i is out of range.
func (s *Sequence) Frame(i int) *frame.Buffer {
	if i < 0 || i >= len(s.frames) {
		return nil
	}
	return s.frames[i].Clone()
}

// FrameIndexAt returns the index of the frame shown t after the start of
// playback. Negative times map to the first frame. Once a finite animation
// has played LoopCount times the last frame stays on screen.
func (s *Sequence) FrameIndexAt(t time.Duration) int {
	if t < 0 || s.total <= 0 {
		return 0
	}
	if s.loopCount > 0 && t/s.total >= time.Duration(s.loopCount) {
		return len(s.frames) - 1
	}
	t %= s.total
	return sort.Search(len(s.ends), func(i int) bool { return s.ends[i] > t })
}

// FrameAt returns a copy of the frame shown at time t, or nil if s has no
// frames.
func (s *Sequence) FrameAt(t time.Duration) *frame.Buffer {
	return s.Frame(s.FrameIndexAt(t))
}

// BitmapAt returns a copy of the pixels shown at time t, or nil if s has no
// frames.
func (s *Sequence) BitmapAt(t time.Duration) *image.NRGBA {
	f := s.FrameAt(t)
	if f == nil {
		return nil
	}
	return f.Image()
}

// ReaderOptions configures a playback reader.
type ReaderOptions struct {
	// OnStart is called on the first Read.
	OnStart func()
	// OnEnd is called once, when the animation has played LoopCount times.
	OnEnd func()
}

// NewReader returns a reader that plays the sequence: every Read returns the
// next frame and how long to show it, honoring the loop count, then io.EOF.
// The returned image is only valid until the next Read. The reader itself
// is not safe for concurrent use.
func (s *Sequence) NewReader(opts ReaderOptions) video.Reader {
	var (
		next, loop int
		started    bool
		endOnce    sync.Once
	)
	buf := video.NewFrameBuffer(s.width * s.height * frame.BytesPerPixel)

	return video.ReaderFunc(func() (image.Image, time.Duration, error) {
		if !started {
			started = true
			if opts.OnStart != nil {
				opts.OnStart()
			}
		}

		if next == len(s.frames) {
			next = 0
			loop++
		}
		if len(s.frames) == 0 || (s.loopCount > 0 && loop >= s.loopCount) {
			endOnce.Do(func() {
				if opts.OnEnd != nil {
					opts.OnEnd()
				}
			})
			return nil, 0, io.EOF
		}

		i := next
		next++
		buf.StoreCopy(s.frames[i].Image())
		return buf.Load(), s.durations[i], nil
	})
}
