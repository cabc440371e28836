package compositor

import (
	"image"

	"github.com/pion/animdecode/pkg/frame"
)

// regionBuffer stores the pixels of one canvas rectangle. It reuses as much
// memory as it can from previous stores, so its capacity grows to the
// largest rectangle seen and never beyond the canvas size.
type regionBuffer struct {
	buffer []uint8
	rect   image.Rectangle
	valid  bool
}

func (r *regionBuffer) store(canvas *frame.Buffer, rect image.Rectangle) {
	neededSize := rect.Dx() * rect.Dy() * frame.BytesPerPixel

	if len(r.buffer) < neededSize {
		if cap(r.buffer) >= neededSize {
			r.buffer = r.buffer[:neededSize]
		} else {
			r.buffer = make([]uint8, neededSize)
		}
	}

	canvas.ReadRect(r.buffer[:neededSize], rect)
	r.rect = rect
	r.valid = true
}

// restore writes the stored pixels back. A region is restored at most once.
func (r *regionBuffer) restore(canvas *frame.Buffer) {
	if !r.valid {
		return
	}
	canvas.WriteRect(r.buffer, r.rect)
	r.valid = false
}
