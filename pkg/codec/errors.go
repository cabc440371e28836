package codec

import (
	"errors"
	"fmt"
)

// MalformedStreamError reports a structural violation in the source stream:
// bad magic bytes, a truncated block, an inconsistent color table and the
// like. It is never worth retrying.
type MalformedStreamError struct {
	Format Format
	// Offset is the byte offset in the source stream where the problem was
	// detected, or -1 when unknown.
	Offset int64
	// Frame is the 0-based index of the frame being decoded, or -1 when the
	// problem is in the stream header.
	Frame  int
	Reason string
	Err    error
}

func (e *MalformedStreamError) Error() string {
	msg := fmt.Sprintf("%s: malformed stream", e.Format)
	if e.Frame >= 0 {
		msg += fmt.Sprintf(" (frame %d", e.Frame)
	} else {
		msg += " (header"
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(", offset %d", e.Offset)
	}
	msg += ")"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedStreamError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports that no backend can decode the format on a
// host with the given capability level.
type UnsupportedFormatError struct {
	Format Format
	// Level is the host capability level the selection was made for.
	Level int
	// Threshold is the minimum level of the native backend, or -1 when the
	// format has no native backend at all.
	Threshold int
	Reason    string
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("%s: unsupported format", e.Format)
	if e.Threshold >= 0 {
		msg += fmt.Sprintf(" at capability level %d (native codec requires %d)", e.Level, e.Threshold)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ResourceLimitError reports input that would exceed a configured bound.
type ResourceLimitError struct {
	// Resource names the bound, e.g. "canvas width" or "frames".
	Resource string
	Limit    int64
	Actual   int64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("codec: %s %d exceeds limit %d", e.Resource, e.Actual, e.Limit)
}

// IsMalformed reports whether err is or wraps a *MalformedStreamError.
func IsMalformed(err error) bool {
	var target *MalformedStreamError
	return errors.As(err, &target)
}

// IsUnsupported reports whether err is or wraps an *UnsupportedFormatError.
func IsUnsupported(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// IsResourceLimit reports whether err is or wraps a *ResourceLimitError.
func IsResourceLimit(err error) bool {
	var target *ResourceLimitError
	return errors.As(err, &target)
}
