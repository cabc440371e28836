package video

import (
	"image"
	"time"

	"github.com/pion/animdecode/pkg/frame"
)

// Reader yields the frames of an animation in display order, each with the
// time it stays on screen. Read returns io.EOF once playback is over.
type Reader interface {
	Read() (img image.Image, delay time.Duration, err error)
}

type ReaderFunc func() (img image.Image, delay time.Duration, err error)

func (rf ReaderFunc) Read() (img image.Image, delay time.Duration, err error) {
	img, delay, err = rf()
	return
}

// TransformFunc mutates a fully composited frame in place. It has exclusive
// access to buf for the duration of the call and must not keep buf, or
// slices of its pixels, after returning. A returned error aborts decoding.
type TransformFunc func(buf *frame.Buffer) error

// Merge merges transforms and produces a new TransformFunc that will execute
// transforms in order. The first error stops the chain.
func Merge(transforms ...TransformFunc) TransformFunc {
	return func(buf *frame.Buffer) error {
		for _, transform := range transforms {
			if transform == nil {
				continue
			}

			if err := transform(buf); err != nil {
				return err
			}
		}

		return nil
	}
}

// Identity leaves the frame unchanged.
func Identity(*frame.Buffer) error {
	return nil
}
