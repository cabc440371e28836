package animdecode

import (
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/animdecode/pkg/frame"
)

func newSequence(t *testing.T, loopCount int, durations ...time.Duration) *Sequence {
	t.Helper()
	s := &Sequence{width: 1, height: 1, loopCount: loopCount, durations: durations}
	for i := range durations {
		buf, err := frame.NewBuffer(1, 1)
		require.NoError(t, err)
		buf.SetNRGBA(0, 0, color.NRGBA{R: uint8(i), A: 0xff})
		s.frames = append(s.frames, buf)
	}
	s.index()
	return s
}

func TestSequenceAccessors(t *testing.T) {
	ms := time.Millisecond
	s := newSequence(t, 2, 10*ms, 20*ms, 30*ms)

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, s.Width())
	assert.Equal(t, 1, s.Height())
	assert.Equal(t, 2, s.LoopCount())
	assert.Equal(t, 60*ms, s.TotalDuration())
	assert.Equal(t, 20*ms, s.Duration(1))
	assert.Equal(t, time.Duration(0), s.Duration(3))
	assert.Nil(t, s.Frame(-1))
	assert.Nil(t, s.Frame(3))

	// Frames are copies.
	f := s.Frame(0)
	f.SetNRGBA(0, 0, color.NRGBA{G: 0xff})
	assert.Equal(t, color.NRGBA{A: 0xff}, s.Frame(0).NRGBAAt(0, 0))

	img := s.BitmapAt(15 * ms)
	assert.Equal(t, color.NRGBA{R: 1, A: 0xff}, img.NRGBAAt(0, 0))
	img.Pix[0] = 0x42
	assert.Equal(t, color.NRGBA{R: 1, A: 0xff}, s.FrameAt(15*ms).NRGBAAt(0, 0))
}

func TestEmptySequence(t *testing.T) {
	var s Sequence

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.FrameIndexAt(time.Second))
	assert.Nil(t, s.FrameAt(time.Second))
	assert.Nil(t, s.BitmapAt(time.Second))

	var ends int
	r := s.NewReader(ReaderOptions{OnEnd: func() { ends++ }})
	for i := 0; i < 2; i++ {
		img, _, err := r.Read()
		assert.Nil(t, img)
		assert.Equal(t, io.EOF, err)
	}
	assert.Equal(t, 1, ends)
}

func TestFrameIndexAt(t *testing.T) {
	ms := time.Millisecond
	testCases := map[string]struct {
		loopCount int
		at        time.Duration
		want      int
	}{
		"Negative":           {loopCount: 0, at: -5 * ms, want: 0},
		"Start":              {loopCount: 0, at: 0, want: 0},
		"InsideFirst":        {loopCount: 0, at: 9 * ms, want: 0},
		"Boundary":           {loopCount: 0, at: 10 * ms, want: 1},
		"Last":               {loopCount: 0, at: 59 * ms, want: 2},
		"SecondLoop":         {loopCount: 0, at: 60 * ms, want: 0},
		"FarLoop":            {loopCount: 0, at: 6000*ms + 35*ms, want: 2},
		"FiniteSecondLoop":   {loopCount: 2, at: 75 * ms, want: 1},
		"FiniteEnd":          {loopCount: 2, at: 120 * ms, want: 2},
		"FiniteAfterEnd":     {loopCount: 2, at: time.Hour, want: 2},
		"OnceAfterEnd":       {loopCount: 1, at: 61 * ms, want: 2},
		"OnceBeforeBoundary": {loopCount: 1, at: 29 * ms, want: 1},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			s := newSequence(t, tc.loopCount, 10*ms, 20*ms, 30*ms)
			assert.Equal(t, tc.want, s.FrameIndexAt(tc.at))
		})
	}
}

func TestReaderPlayback(t *testing.T) {
	ms := time.Millisecond
	s := newSequence(t, 2, 10*ms, 20*ms)

	var starts, ends int
	r := s.NewReader(ReaderOptions{
		OnStart: func() { starts++ },
		OnEnd:   func() { ends++ },
	})

	var delays []time.Duration
	var reds []uint8
	for {
		img, delay, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 1, starts)
		delays = append(delays, delay)
		reds = append(reds, img.(interface{ NRGBAAt(x, y int) color.NRGBA }).NRGBAAt(0, 0).R)
	}
	assert.Equal(t, []time.Duration{10 * ms, 20 * ms, 10 * ms, 20 * ms}, delays)
	assert.Equal(t, []uint8{0, 1, 0, 1}, reds)

	_, _, err := r.Read()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, ends)
}

func TestReaderInfinite(t *testing.T) {
	s := newSequence(t, 0, time.Millisecond, time.Millisecond, time.Millisecond)
	r := s.NewReader(ReaderOptions{OnEnd: func() { t.Fatal("an infinite animation never ends") }})
	for i := 0; i < 100; i++ {
		img, _, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, uint8(i%3), img.(interface{ NRGBAAt(x, y int) color.NRGBA }).NRGBAAt(0, 0).R)
	}
}
