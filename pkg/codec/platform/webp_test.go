package platform

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/animdecode/internal/fixture"
	"github.com/pion/animdecode/pkg/codec"
	"github.com/pion/animdecode/pkg/frame"
)

var (
	red       = color.NRGBA{R: 0xff, A: 0xff}
	green     = color.NRGBA{G: 0xff, A: 0xff}
	halfBlue  = color.NRGBA{B: 0xff, A: 0x80}
	noColor   = color.NRGBA{}
	allLimits = codec.DefaultLimits()
)

func decodeAll(t *testing.T, b codec.Backend, data []byte) (codec.Header, []*frame.Delta, error) {
	t.Helper()
	defer b.Close()

	hdr, err := b.Open(bytes.NewReader(data))
	if err != nil {
		return hdr, nil, err
	}
	var deltas []*frame.Delta
	for {
		d, err := b.NextFrame()
		if err == io.EOF {
			return hdr, deltas, nil
		}
		if err != nil {
			return hdr, deltas, err
		}
		deltas = append(deltas, d)
	}
}

func TestWebPAnimated(t *testing.T) {
	data := fixture.AnimatedWebP(4, 4, 3,
		fixture.WebPFrame{Rect: image.Rect(0, 0, 4, 4), Color: red, Duration: 40 * time.Millisecond},
		fixture.WebPFrame{Rect: image.Rect(2, 2, 4, 4), Color: green, Dispose: true},
		fixture.WebPFrame{Rect: image.Rect(0, 2, 2, 3), Color: halfBlue, Blend: true, Duration: 70 * time.Millisecond},
	)

	hdr, deltas, err := decodeAll(t, NewWebP(allLimits), data)
	require.NoError(t, err)
	assert.Equal(t, codec.Header{Width: 4, Height: 4, LoopCount: 3, FrameCount: 3}, hdr)
	require.Len(t, deltas, 3)

	assert.Equal(t, image.Rect(0, 0, 4, 4), deltas[0].Rect)
	assert.Equal(t, frame.BlendSource, deltas[0].Blend)
	assert.Equal(t, frame.DisposeNone, deltas[0].Dispose)
	assert.Equal(t, 40*time.Millisecond, deltas[0].Duration)
	assert.Equal(t, red, deltas[0].Patch.NRGBAAt(3, 3))
	assert.False(t, deltas[0].Final)

	assert.Equal(t, image.Rect(2, 2, 4, 4), deltas[1].Rect)
	assert.Equal(t, frame.DisposeRestoreBackground, deltas[1].Dispose)
	assert.Equal(t, time.Duration(0), deltas[1].Duration)
	assert.Equal(t, green, deltas[1].Patch.NRGBAAt(1, 1))

	assert.Equal(t, image.Rect(0, 2, 2, 3), deltas[2].Rect)
	assert.Equal(t, frame.BlendSourceOver, deltas[2].Blend)
	assert.Equal(t, halfBlue, deltas[2].Patch.NRGBAAt(1, 0))
	assert.True(t, deltas[2].Final)
}

func TestWebPStill(t *testing.T) {
	hdr, deltas, err := decodeAll(t, NewWebP(allLimits), fixture.StillWebP(3, 2, green))
	require.NoError(t, err)
	assert.Equal(t, 3, hdr.Width)
	assert.Equal(t, 2, hdr.Height)
	assert.Equal(t, 1, hdr.LoopCount)
	require.Len(t, deltas, 1)
	assert.Equal(t, image.Rect(0, 0, 3, 2), deltas[0].Rect)
	assert.Equal(t, green, deltas[0].Patch.NRGBAAt(2, 1))
	assert.True(t, deltas[0].Final)
}

func TestWebPMalformed(t *testing.T) {
	valid := fixture.AnimatedWebP(4, 4, 0,
		fixture.WebPFrame{Rect: image.Rect(0, 0, 4, 4), Color: red},
		fixture.WebPFrame{Rect: image.Rect(0, 0, 2, 2), Color: green},
	)
	notWebP := append([]byte(nil), valid...)
	copy(notWebP[8:12], "AVI ")

	testCases := map[string][]byte{
		"Truncated":   valid[:len(valid)-5],
		"FormType":    notWebP,
		"Empty":       {},
		"OutOfCanvas": fixture.AnimatedWebP(4, 4, 0, fixture.WebPFrame{Rect: image.Rect(2, 2, 6, 6), Color: red}),
		"NoFrames":    fixture.AnimatedWebP(4, 4, 0),
	}
	for name, data := range testCases {
		data := data
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeAll(t, NewWebP(allLimits), data)
			require.Error(t, err)
			assert.True(t, codec.IsMalformed(err), "unexpected error %v", err)
		})
	}
}

func TestWebPLimits(t *testing.T) {
	data := fixture.AnimatedWebP(64, 64, 0, fixture.WebPFrame{Rect: image.Rect(0, 0, 64, 64), Color: red})

	limits := codec.DefaultLimits()
	limits.MaxWidth = 32
	_, _, err := decodeAll(t, NewWebP(limits), data)
	assert.True(t, codec.IsResourceLimit(err), "unexpected error %v", err)

	limits = codec.DefaultLimits()
	limits.MaxBytes = int64(len(data) - 1)
	_, _, err = decodeAll(t, NewWebP(limits), data)
	assert.True(t, codec.IsResourceLimit(err), "unexpected error %v", err)
}

func TestAppendRIFFPadsOddChunks(t *testing.T) {
	b := appendRIFF(nil, chunk{fccALPH, []byte{1, 2, 3}})
	assert.Equal(t, []byte("RIFF\x10\x00\x00\x00WEBPALPH\x03\x00\x00\x00\x01\x02\x03\x00"), b)
}

func TestToNRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	src.SetNRGBA(6, 5, halfBlue)
	dst := toNRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 2, 1), dst.Rect)
	assert.Equal(t, halfBlue, dst.NRGBAAt(1, 0))
	assert.Equal(t, noColor, dst.NRGBAAt(0, 0))

	pal := image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.RGBA{R: 0xff, A: 0xff}})
	assert.Equal(t, red, toNRGBA(pal).NRGBAAt(0, 0))
}
