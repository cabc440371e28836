// Package platform provides the native backends for animated GIF, HEIF and
// WebP. They stand for the codecs a host platform offers from
// codec.NativeThreshold onward and register themselves as the native
// backends of their formats when the package is imported.
//
// Unlike the streaming software GIF backend, the native backends buffer
// the whole input, bounded by codec.Limits.MaxBytes, the way platform image
// decoders consume a complete source.
package platform

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"

	"github.com/pion/animdecode/internal/logging"
	"github.com/pion/animdecode/pkg/codec"
)

// Backend names used for registration.
const (
	GIFName  = "platform-gif"
	HEIFName = "platform-heif"
	WebPName = "platform-webp"
)

var logger = logging.NewLogger("animdecode/codec/platform")

func init() {
	codec.RegisterNative(codec.FormatGIF, codec.NativeThreshold, codec.NamedBackend{Name: GIFName, Builder: NewGIF})
	codec.RegisterNative(codec.FormatHEIF, codec.NativeThreshold, codec.NamedBackend{Name: HEIFName, Builder: NewHEIF})
	codec.RegisterNative(codec.FormatWebP, codec.NativeThreshold, codec.NamedBackend{Name: WebPName, Builder: NewWebP})
}

// readAll buffers r, failing with a *codec.ResourceLimitError once more than
// limits.MaxBytes bytes arrive.
func readAll(r io.Reader, limits codec.Limits) ([]byte, error) {
	if limits.MaxBytes > 0 {
		r = io.LimitReader(r, limits.MaxBytes+1)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("platform: reading source: %w", err)
	}
	if err := limits.CheckBytes(int64(buf.Len())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toNRGBA returns img as an *image.NRGBA whose bounds start at the origin.
// Decoders that already produce NRGBA pixels are copied byte for byte, so
// straight alpha survives unchanged.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		rowLen := 4 * b.Dx()
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[off:off+rowLen])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func malformed(f codec.Format, frame int, reason string, err error) error {
	return &codec.MalformedStreamError{
		Format: f,
		Offset: -1,
		Frame:  frame,
		Reason: reason,
		Err:    err,
	}
}
