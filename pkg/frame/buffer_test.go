package frame

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuffer(t *testing.T) {
	b, err := NewBuffer(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Width())
	assert.Equal(t, 2, b.Height())
	assert.Equal(t, 3*BytesPerPixel, b.Stride())
	assert.Len(t, b.Pix(), 3*2*BytesPerPixel)
	assert.Equal(t, color.NRGBA{}, b.NRGBAAt(2, 1))

	for _, size := range [][2]int{{0, 1}, {1, 0}, {-1, 5}} {
		_, err := NewBuffer(size[0], size[1])
		assert.Error(t, err, "size %v", size)
	}
}

func TestBufferIsDrawImage(t *testing.T) {
	b, err := NewBuffer(2, 2)
	require.NoError(t, err)
	var _ draw.Image = b

	draw.Draw(b, image.Rect(1, 0, 2, 2), image.NewUniform(color.NRGBA{G: 0xff, A: 0xff}), image.Point{}, draw.Src)
	assert.Equal(t, color.NRGBA{}, b.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, b.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBAModel, b.ColorModel())
}

func TestBufferCloneAndCopy(t *testing.T) {
	c := color.NRGBA{R: 9, G: 8, B: 7, A: 6}
	b, err := NewBuffer(2, 2)
	require.NoError(t, err)
	b.SetNRGBA(1, 0, c)

	clone := b.Clone()
	assert.Equal(t, b.Pix(), clone.Pix())
	clone.SetNRGBA(1, 0, color.NRGBA{})
	assert.Equal(t, c, b.NRGBAAt(1, 0))

	require.NoError(t, clone.CopyFrom(b))
	assert.Equal(t, c, clone.NRGBAAt(1, 0))

	other, err := NewBuffer(2, 3)
	require.NoError(t, err)
	assert.Error(t, other.CopyFrom(b))
}

func TestBufferFill(t *testing.T) {
	c := color.NRGBA{R: 0xff, A: 0x80}
	b, err := NewBuffer(3, 3)
	require.NoError(t, err)

	b.Fill(image.Rect(2, 2, 10, 10), c)
	assert.Equal(t, c, b.NRGBAAt(2, 2))
	assert.Equal(t, color.NRGBA{}, b.NRGBAAt(1, 2))

	b.Fill(image.Rect(5, 5, 6, 6), color.NRGBA{G: 1})
	b.Fill(b.Bounds(), c)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, c, b.NRGBAAt(x, y))
		}
	}

	b.Clear()
	assert.Equal(t, make([]uint8, 3*3*BytesPerPixel), b.Pix())
}

func TestBufferRect(t *testing.T) {
	b, err := NewBuffer(4, 3)
	require.NoError(t, err)
	for i := range b.Pix() {
		b.Pix()[i] = uint8(i)
	}

	r := image.Rect(1, 1, 3, 3)
	dst := make([]uint8, r.Dx()*r.Dy()*BytesPerPixel)
	assert.Equal(t, len(dst), b.ReadRect(dst, r))
	assert.Equal(t, []uint8{20, 21, 22, 23}, dst[:4])
	assert.Equal(t, []uint8{36, 37, 38, 39}, dst[8:12])

	other, err := NewBuffer(4, 3)
	require.NoError(t, err)
	assert.Equal(t, len(dst), other.WriteRect(dst, r))
	assert.Equal(t, b.NRGBAAt(2, 2), other.NRGBAAt(2, 2))
	assert.Equal(t, color.NRGBA{}, other.NRGBAAt(0, 0))
}
