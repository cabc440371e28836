package animdecode

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// TransformationError is returned when the frame transformation fails. The
// session is aborted and no frames are returned.
type TransformationError struct {
	// Session is the id of the failed decode session.
	Session uuid.UUID
	// Frame is the zero-based index of the frame being transformed.
	Frame int
	Err   error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("animdecode: transformation failed on frame %d: %v", e.Frame, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// CancelledError is returned when the session context is done before the
// last frame was decoded.
type CancelledError struct {
	// Session is the id of the cancelled decode session.
	Session uuid.UUID
	// Frame is the index of the frame that was about to be decoded, or -1 if
	// the session never started.
	Frame int
	Err   error
}

func (e *CancelledError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("animdecode: cancelled: %v", e.Err)
	}
	return fmt.Sprintf("animdecode: cancelled before frame %d: %v", e.Frame, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// IsTransformation reports whether err is or wraps a *TransformationError.
func IsTransformation(err error) bool {
	var e *TransformationError
	return errors.As(err, &e)
}

// IsCancelled reports whether err is or wraps a *CancelledError.
func IsCancelled(err error) bool {
	var e *CancelledError
	return errors.As(err, &e)
}
