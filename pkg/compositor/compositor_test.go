package compositor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/animdecode/pkg/frame"
)

var (
	red         = color.NRGBA{R: 0xff, A: 0xff}
	green       = color.NRGBA{G: 0xff, A: 0xff}
	blue        = color.NRGBA{B: 0xff, A: 0xff}
	transparent = color.NRGBA{}
)

func solid(rect image.Rectangle, c color.NRGBA, dispose frame.Dispose, blend frame.Blend) *frame.Delta {
	patch := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for i := 0; i < len(patch.Pix); i += 4 {
		patch.Pix[i], patch.Pix[i+1], patch.Pix[i+2], patch.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &frame.Delta{Rect: rect, Patch: patch, Dispose: dispose, Blend: blend}
}

func TestCompositeRestoreBackground(t *testing.T) {
	c, err := New(4, 4, transparent)
	require.NoError(t, err)

	// Frame 0 fills the canvas, frame 1 paints a 2x2 square and is disposed
	// to background, frame 2 only touches the top-left pixel.
	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 4, 4), red, frame.DisposeNone, frame.BlendSource)))
	require.NoError(t, c.Composite(solid(image.Rect(1, 1, 3, 3), green, frame.DisposeRestoreBackground, frame.BlendSource)))
	assert.Equal(t, green, c.Canvas().NRGBAAt(1, 1))

	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 1, 1), blue, frame.DisposeNone, frame.BlendSourceOver)))

	canvas := c.Canvas()
	assert.Equal(t, blue, canvas.NRGBAAt(0, 0))
	for _, p := range []image.Point{{1, 1}, {2, 1}, {1, 2}, {2, 2}} {
		assert.Equal(t, transparent, canvas.NRGBAAt(p.X, p.Y), "pixel %v must show the background", p)
	}
	assert.Equal(t, red, canvas.NRGBAAt(3, 3))
	assert.Equal(t, StateComposited, c.State())
}

func TestCompositeRestorePrevious(t *testing.T) {
	c, err := New(4, 4, transparent)
	require.NoError(t, err)

	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 4, 4), red, frame.DisposeNone, frame.BlendSource)))
	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 2, 2), green, frame.DisposeRestorePrevious, frame.BlendSource)))
	assert.Equal(t, green, c.Canvas().NRGBAAt(0, 0))

	// Frame 2 is transparent everywhere except (3,3): with SourceOver the
	// restored frame 0 content must show through.
	patch := solid(image.Rect(0, 0, 4, 4), transparent, frame.DisposeNone, frame.BlendSourceOver)
	patch.Patch.SetNRGBA(3, 3, blue)
	require.NoError(t, c.Composite(patch))

	canvas := c.Canvas()
	assert.Equal(t, red, canvas.NRGBAAt(0, 0))
	assert.Equal(t, red, canvas.NRGBAAt(1, 1))
	assert.Equal(t, blue, canvas.NRGBAAt(3, 3))
}

func TestCompositeRestorePreviousBoundedMemory(t *testing.T) {
	c, err := New(64, 64, transparent)
	require.NoError(t, err)

	rects := []image.Rectangle{
		image.Rect(0, 0, 8, 8),
		image.Rect(10, 10, 26, 26),
		image.Rect(0, 0, 4, 4),
		image.Rect(30, 30, 40, 40),
	}
	for i := 0; i < 50; i++ {
		r := rects[i%len(rects)]
		require.NoError(t, c.Composite(solid(r, green, frame.DisposeRestorePrevious, frame.BlendSource)))
	}
	assert.Equal(t, 16*16*frame.BytesPerPixel, c.SavedBytes())
}

func TestCompositeStates(t *testing.T) {
	c, err := New(2, 2, transparent)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, c.State())

	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 2, 2), red, frame.DisposeNone, frame.BlendSource)))
	assert.Equal(t, StateComposited, c.State())

	c.Reset()
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, transparent, c.Canvas().NRGBAAt(0, 0))
}

func TestCompositeRejectsOutOfBounds(t *testing.T) {
	c, err := New(2, 2, transparent)
	require.NoError(t, err)
	require.NoError(t, c.Composite(solid(image.Rect(0, 0, 2, 2), red, frame.DisposeRestoreBackground, frame.BlendSource)))

	err = c.Composite(solid(image.Rect(1, 1, 3, 3), green, frame.DisposeNone, frame.BlendSource))
	require.Error(t, err)
	// The failed delta must not trigger the pending disposal.
	assert.Equal(t, red, c.Canvas().NRGBAAt(0, 0))
	assert.Equal(t, StateComposited, c.State())
}

func TestBlendNRGBA(t *testing.T) {
	testCases := map[string]struct {
		src, dst, want color.NRGBA
	}{
		"TransparentSource": {src: transparent, dst: red, want: red},
		"OpaqueSource":      {src: green, dst: red, want: green},
		"TransparentDest":   {src: color.NRGBA{R: 10, A: 100}, dst: transparent, want: color.NRGBA{R: 9, A: 100}},
		"FaintOverTransparent": {
			src:  color.NRGBA{R: 200, G: 1, A: 3},
			dst:  transparent,
			want: color.NRGBA{R: 199, G: 0, A: 3},
		},
		"HalfOverTransparent": {
			src:  color.NRGBA{R: 0xff, G: 0x40, A: 0x80},
			dst:  transparent,
			want: color.NRGBA{R: 0xff, G: 0x40, A: 0x80},
		},
		"HalfOverOpaque": {
			src:  color.NRGBA{R: 0xff, A: 0x80},
			dst:  color.NRGBA{B: 0xff, A: 0xff},
			want: color.NRGBA{R: 0x7f, B: 0x7e, A: 0xff},
		},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, blendNRGBA(tc.src, tc.dst))
		})
	}
}

func BenchmarkCompositeSourceOver(b *testing.B) {
	c, err := New(640, 480, transparent)
	if err != nil {
		b.Fatal(err)
	}
	d := solid(image.Rect(0, 0, 640, 480), color.NRGBA{R: 0x80, A: 0x80}, frame.DisposeNone, frame.BlendSourceOver)
	for i := 0; i < b.N; i++ {
		if err := c.Composite(d); err != nil {
			b.Fatal(err)
		}
	}
}
