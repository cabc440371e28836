package video

import (
	"fmt"

	"github.com/pion/animdecode/pkg/frame"
)

// Invert returns a transform that inverts the color channels of every
// pixel. Alpha is kept.
func Invert() TransformFunc {
	return func(buf *frame.Buffer) error {
		pix := buf.Pix()
		for i := 0; i < len(pix); i += frame.BytesPerPixel {
			pix[i] = ^pix[i]
			pix[i+1] = ^pix[i+1]
			pix[i+2] = ^pix[i+2]
		}
		return nil
	}
}

// Grayscale returns a transform that replaces every color with its luma,
// using the same weights as color.GrayModel.
func Grayscale() TransformFunc {
	return func(buf *frame.Buffer) error {
		pix := buf.Pix()
		for i := 0; i < len(pix); i += frame.BytesPerPixel {
			r, g, b := uint32(pix[i]), uint32(pix[i+1]), uint32(pix[i+2])
			y := uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
			pix[i], pix[i+1], pix[i+2] = y, y, y
		}
		return nil
	}
}

// RoundedCorners returns a transform that makes the pixels outside a
// rectangle with rounded corners of the given radius transparent. A pixel
// is kept when its center lies inside the corner circle. The radius is
// capped at half the shorter side.
func RoundedCorners(radius int) TransformFunc {
	return func(buf *frame.Buffer) error {
		if radius < 0 {
			return fmt.Errorf("video: negative corner radius %d", radius)
		}
		w, h := buf.Width(), buf.Height()
		r := radius
		if r > w/2 {
			r = w / 2
		}
		if r > h/2 {
			r = h / 2
		}
		if r == 0 {
			return nil
		}

		rf := float64(r)
		pix, stride := buf.Pix(), buf.Stride()
		for y := 0; y < r; y++ {
			for x := 0; x < r; x++ {
				dx := rf - (float64(x) + 0.5)
				dy := rf - (float64(y) + 0.5)
				if dx*dx+dy*dy <= rf*rf {
					continue
				}
				for _, p := range [4][2]int{{x, y}, {w - 1 - x, y}, {x, h - 1 - y}, {w - 1 - x, h - 1 - y}} {
					off := p[1]*stride + p[0]*frame.BytesPerPixel
					clear(pix[off : off+frame.BytesPerPixel])
				}
			}
		}
		return nil
	}
}
