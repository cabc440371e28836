package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Format identifies the container format of an animated image stream.
type Format int

const (
	FormatUnknown Format = iota
	FormatGIF
	FormatHEIF
	FormatWebP
)

func (f Format) String() string {
	switch f {
	case FormatGIF:
		return "gif"
	case FormatHEIF:
		return "heif"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "gif":
		return FormatGIF, nil
	case "heif", "heifs":
		return FormatHEIF, nil
	case "webp":
		return FormatWebP, nil
	default:
		return FormatUnknown, fmt.Errorf("codec: unknown format %q", s)
	}
}

// SniffLen is the number of leading bytes Sniff needs to recognize every
// supported format.
const SniffLen = 32

// heifBrands are ftyp brands that identify a HEIF file or image sequence.
var heifBrands = []string{"msf1", "hevc", "hevx", "heic", "heix", "heim", "heis", "mif1"}

// IsHEIFBrand reports whether brand, an ftyp major or compatible brand,
// identifies a HEIF file.
func IsHEIFBrand(brand string) bool {
	for _, b := range heifBrands {
		if brand == b {
			return true
		}
	}
	return false
}

// Sniff returns the format of a stream from its leading bytes.
func Sniff(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, []byte("GIF87a")), bytes.HasPrefix(head, []byte("GIF89a")):
		return FormatGIF
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return FormatWebP
	case len(head) >= 12 && string(head[4:8]) == "ftyp":
		if IsHEIFBrand(string(head[8:12])) {
			return FormatHEIF
		}
		// The major brand may be generic; look at the compatible brands
		// that fit in head.
		end := int(binary.BigEndian.Uint32(head[0:4]))
		if end > len(head) {
			end = len(head)
		}
		for i := 16; i+4 <= end; i += 4 {
			if IsHEIFBrand(string(head[i : i+4])) {
				return FormatHEIF
			}
		}
	}
	return FormatUnknown
}
