package platform

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

func encodeGIF(t *testing.T, g *gif.GIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func filled(r image.Rectangle, p color.Palette, idx uint8) *image.Paletted {
	img := image.NewPaletted(r, p)
	for i := range img.Pix {
		img.Pix[i] = idx
	}
	return img
}

func TestGIF(t *testing.T) {
	opaque := color.Palette{color.RGBA{R: 0xff, A: 0xff}, color.RGBA{G: 0xff, A: 0xff}}
	withAlpha := color.Palette{color.RGBA{R: 0xff, A: 0xff}, color.RGBA{}}

	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{
			filled(image.Rect(0, 0, 4, 4), opaque, 1),
			filled(image.Rect(1, 1, 3, 3), withAlpha, 1),
		},
		Delay:     []int{3, 0},
		Disposal:  []byte{gif.DisposalBackground, gif.DisposalPrevious},
		LoopCount: 4,
	})

	hdr, deltas, err := decodeAll(t, NewGIF(allLimits), data)
	require.NoError(t, err)
	assert.Equal(t, codec.Header{Width: 4, Height: 4, LoopCount: 5, FrameCount: 2}, hdr)
	require.Len(t, deltas, 2)

	assert.Equal(t, frame.BlendSource, deltas[0].Blend)
	assert.Equal(t, frame.DisposeRestoreBackground, deltas[0].Dispose)
	assert.Equal(t, 30*time.Millisecond, deltas[0].Duration)
	assert.Equal(t, green, deltas[0].Patch.NRGBAAt(0, 0))

	assert.Equal(t, image.Rect(1, 1, 3, 3), deltas[1].Rect)
	assert.Equal(t, frame.BlendSourceOver, deltas[1].Blend)
	assert.Equal(t, frame.DisposeRestorePrevious, deltas[1].Dispose)
	assert.Equal(t, noColor, deltas[1].Patch.NRGBAAt(0, 0))
	assert.True(t, deltas[1].Final)
}

func TestGIFPlayCount(t *testing.T) {
	assert.Equal(t, 1, gifPlayCount(-1))
	assert.Equal(t, 0, gifPlayCount(0))
	assert.Equal(t, 3, gifPlayCount(2))
}

func TestGIFMalformed(t *testing.T) {
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{filled(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White}, 1)},
		Delay: []int{1},
	})
	_, _, err := decodeAll(t, NewGIF(allLimits), data[:len(data)-4])
	require.Error(t, err)
	assert.True(t, codec.IsMalformed(err), "unexpected error %v", err)
}

func TestNativeRegistration(t *testing.T) {
	s := codec.DefaultSelector()
	for f, name := range map[codec.Format]string{
		codec.FormatGIF:  GIFName,
		codec.FormatHEIF: HEIFName,
		codec.FormatWebP: WebPName,
	} {
		b, err := s.Select(f, codec.NativeThreshold)
		require.NoError(t, err)
		assert.Equal(t, name, b.Name)
		assert.True(t, b.Native)
	}
}
