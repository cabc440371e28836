package video

import (
	"image"
)

// FrameBuffer holds a copy of the last stored image.
type FrameBuffer struct {
	buffer []uint8
	tmp    *image.NRGBA
}

// NewFrameBuffer creates a new FrameBuffer instance and initialize internal buffer
// with initialSize
func NewFrameBuffer(initialSize int) *FrameBuffer {
	return &FrameBuffer{
		buffer: make([]uint8, initialSize),
	}
}

func (buff *FrameBuffer) store(src []uint8) {
	neededSize := len(src)

	if len(buff.buffer) < neededSize {
		if cap(buff.buffer) >= neededSize {
			buff.buffer = buff.buffer[:neededSize]
		} else {
			buff.buffer = make([]uint8, neededSize)
		}
	}

	copy(buff.buffer, src)
}

// Load loads the current owned image
func (buff *FrameBuffer) Load() *image.NRGBA {
	return buff.tmp
}

// StoreCopy makes a copy of src and store its copy. StoreCopy will reuse as much memory as it can
// from the previous copies. For example, if StoreCopy is given an image that has the same resolution
// from the previous call, StoreCopy will not allocate extra memory and only copy the content
// from src to the previous buffer.
func (buff *FrameBuffer) StoreCopy(src *image.NRGBA) {
	clone := buff.tmp
	if clone == nil {
		clone = &image.NRGBA{}
	}
	*clone = *src

	buff.store(src.Pix)
	clone.Pix = buff.buffer[:len(src.Pix)]

	buff.tmp = clone
}
