package frame

import (
	"fmt"
	"image"
	"image/color"
)

// BytesPerPixel is the size of one pixel in every Buffer.
const BytesPerPixel = 4

// Buffer is an owned, mutable 32-bit RGBA pixel surface. Pixels are stored
// non-premultiplied, 4 bytes per pixel in R, G, B, A order, with no padding
// between rows. The dimensions of a Buffer never change after creation.
type Buffer struct {
	img *image.NRGBA
}

// NewBuffer allocates a transparent Buffer of the given size.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid buffer size %dx%d", width, height)
	}
	return &Buffer{img: image.NewNRGBA(image.Rect(0, 0, width, height))}, nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.img.Rect.Dx() }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.img.Rect.Dy() }

// Stride returns the distance in bytes between vertically adjacent pixels.
func (b *Buffer) Stride() int { return b.img.Stride }

// Pix returns the underlying pixel storage. len(Pix()) is always
// Width()*Height()*BytesPerPixel. Writes through the slice are visible in b.
func (b *Buffer) Pix() []uint8 { return b.img.Pix }

// Image returns b as an *image.NRGBA sharing b's storage.
func (b *Buffer) Image() *image.NRGBA { return b.img }

func (b *Buffer) ColorModel() color.Model { return color.NRGBAModel }

func (b *Buffer) Bounds() image.Rectangle { return b.img.Rect }

func (b *Buffer) At(x, y int) color.Color { return b.img.At(x, y) }

func (b *Buffer) Set(x, y int, c color.Color) { b.img.Set(x, y, c) }

// NRGBAAt returns the pixel at (x, y), or the zero color outside the bounds.
func (b *Buffer) NRGBAAt(x, y int) color.NRGBA { return b.img.NRGBAAt(x, y) }

// SetNRGBA sets the pixel at (x, y). Points outside the bounds are ignored.
func (b *Buffer) SetNRGBA(x, y int, c color.NRGBA) { b.img.SetNRGBA(x, y, c) }

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	dst := &Buffer{img: image.NewNRGBA(b.img.Rect)}
	copy(dst.img.Pix, b.img.Pix)
	return dst
}

// CopyFrom overwrites b with the pixels of src. Both buffers must have the
// same dimensions.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.img.Rect != b.img.Rect {
		return fmt.Errorf("frame: size mismatch %v != %v", src.img.Rect, b.img.Rect)
	}
	copy(b.img.Pix, src.img.Pix)
	return nil
}

// Fill sets every pixel of r, clipped to the bounds, to c.
func (b *Buffer) Fill(r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(b.img.Rect)
	if r.Empty() {
		return
	}
	px := [BytesPerPixel]uint8{c.R, c.G, c.B, c.A}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := b.img.Pix[b.img.PixOffset(r.Min.X, y):b.img.PixOffset(r.Max.X, y)]
		for i := 0; i < len(row); i += BytesPerPixel {
			copy(row[i:i+BytesPerPixel], px[:])
		}
	}
}

// Clear makes every pixel transparent black.
func (b *Buffer) Clear() {
	clear(b.img.Pix)
}

// ReadRect copies the pixels of r, which must lie inside the bounds, into
// dst in row-major order and returns the number of bytes written. dst must
// hold at least r.Dx()*r.Dy()*BytesPerPixel bytes.
func (b *Buffer) ReadRect(dst []uint8, r image.Rectangle) int {
	rowLen := r.Dx() * BytesPerPixel
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := b.img.PixOffset(r.Min.X, y)
		n += copy(dst[n:n+rowLen], b.img.Pix[off:off+rowLen])
	}
	return n
}

// WriteRect is the inverse of ReadRect.
func (b *Buffer) WriteRect(src []uint8, r image.Rectangle) int {
	rowLen := r.Dx() * BytesPerPixel
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := b.img.PixOffset(r.Min.X, y)
		n += copy(b.img.Pix[off:off+rowLen], src[n:n+rowLen])
	}
	return n
}
