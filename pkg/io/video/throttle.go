package video

import (
	"image"
	"time"
)

// Throttle returns a reader that plays r in real time: each Read blocks until
// the frame returned by the previous Read has been shown for its delay.
// A consumer that falls behind is not made to catch up.
func Throttle(r Reader) Reader {
	var due time.Time
	return ReaderFunc(func() (image.Image, time.Duration, error) {
		img, delay, err := r.Read()
		if err != nil {
			return nil, 0, err
		}

		now := time.Now()
		if !due.IsZero() && now.Before(due) {
			time.Sleep(due.Sub(now))
			now = due
		}
		due = now.Add(delay)
		return img, delay, nil
	})
}
