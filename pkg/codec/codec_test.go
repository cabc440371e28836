package codec

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimits(t *testing.T) {
	l := Limits{MaxWidth: 100, MaxHeight: 50, MaxPixels: 1000, MaxFrames: 3, MaxBytes: 10}

	testCases := map[string]struct {
		err      error
		resource string
	}{
		"CanvasOK":     {err: l.CheckCanvas(40, 25)},
		"CanvasWidth":  {err: l.CheckCanvas(101, 1), resource: "canvas width"},
		"CanvasHeight": {err: l.CheckCanvas(1, 51), resource: "canvas height"},
		"CanvasPixels": {err: l.CheckCanvas(100, 11), resource: "canvas pixels"},
		"FramesOK":     {err: l.CheckFrames(3)},
		"Frames":       {err: l.CheckFrames(4), resource: "frames"},
		"BytesOK":      {err: l.CheckBytes(10)},
		"Bytes":        {err: l.CheckBytes(11), resource: "bytes"},
		"Unbounded":    {err: Limits{}.CheckCanvas(1<<20, 1<<20)},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			if tc.resource == "" {
				assert.NoError(t, tc.err)
				return
			}
			var limit *ResourceLimitError
			if assert.True(t, errors.As(tc.err, &limit)) {
				assert.Equal(t, tc.resource, limit.Resource)
			}
		})
	}
}

func TestSniff(t *testing.T) {
	ftyp := func(major string, compatible ...string) []byte {
		b := []byte{0, 0, 0, byte(16 + 4*len(compatible)), 'f', 't', 'y', 'p'}
		b = append(b, major...)
		b = append(b, 0, 0, 0, 0)
		for _, c := range compatible {
			b = append(b, c...)
		}
		return b
	}
	testCases := map[string]struct {
		head []byte
		want Format
	}{
		"GIF87a":         {head: []byte("GIF87a\x01\x00"), want: FormatGIF},
		"GIF89a":         {head: []byte("GIF89a"), want: FormatGIF},
		"WebP":           {head: []byte("RIFF\x10\x00\x00\x00WEBPVP8L"), want: FormatWebP},
		"RIFFNotWebP":    {head: []byte("RIFF\x10\x00\x00\x00WAVEfmt "), want: FormatUnknown},
		"HEIFMajor":      {head: ftyp("msf1"), want: FormatHEIF},
		"HEIFCompatible": {head: ftyp("isom", "iso8", "hevc"), want: FormatHEIF},
		"MP4":            {head: ftyp("isom", "avc1"), want: FormatUnknown},
		"Short":          {head: []byte("GIF"), want: FormatUnknown},
		"Empty":          {want: FormatUnknown},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Sniff(tc.head))
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatGIF, FormatHEIF, FormatWebP} {
		got, err := ParseFormat(f.String())
		assert.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseFormat("WebP")
	assert.NoError(t, err)
	assert.Equal(t, FormatWebP, got)

	_, err = ParseFormat("png")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Format(99).String())
}

func TestErrors(t *testing.T) {
	malformed := &MalformedStreamError{Format: FormatGIF, Offset: 13, Frame: 2, Reason: "bad block", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "gif: malformed stream (frame 2, offset 13): bad block: unexpected EOF", malformed.Error())
	assert.ErrorIs(t, malformed, io.ErrUnexpectedEOF)

	header := &MalformedStreamError{Format: FormatWebP, Offset: -1, Frame: -1, Reason: "no frames"}
	assert.Equal(t, "webp: malformed stream (header): no frames", header.Error())

	wrapped := fmt.Errorf("decode: %w", malformed)
	assert.True(t, IsMalformed(wrapped))
	assert.False(t, IsUnsupported(wrapped))
	assert.False(t, IsResourceLimit(wrapped))

	unsupported := &UnsupportedFormatError{Format: FormatHEIF, Level: 21, Threshold: 28}
	assert.Equal(t, "heif: unsupported format at capability level 21 (native codec requires 28)", unsupported.Error())
	assert.True(t, IsUnsupported(unsupported))

	assert.True(t, IsResourceLimit(&ResourceLimitError{Resource: "frames", Limit: 1, Actual: 2}))
}
