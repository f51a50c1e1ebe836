package envelope

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the script carries no envelope start marker.
	ErrNotFound = errors.New("envelope start marker not found")
	// ErrTruncated is returned when a length field or operand runs past the
	// end of the script.
	ErrTruncated = errors.New("script truncated")
	// ErrMalformedPush is returned when a byte in push position is neither a
	// data push nor the terminator.
	ErrMalformedPush = errors.New("malformed push")
	// ErrInvalidMimeEncoding is returned when the content type is not ASCII.
	ErrInvalidMimeEncoding = errors.New("content type is not valid ascii")
	// ErrInvalidHex is returned when the witness script is not valid hex.
	ErrInvalidHex = errors.New("invalid witness hex")
)

// DecodeError records where in the script a decode failed.
type DecodeError struct {
	Offset int
	Err    error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("envelope: %v at byte %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("envelope: %v at byte %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(offset int, err error, format string, args ...any) error {
	return &DecodeError{Offset: offset, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// Reason returns a short stable label for err, suitable for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrMalformedPush):
		return "malformed_push"
	case errors.Is(err, ErrInvalidMimeEncoding):
		return "invalid_mime"
	case errors.Is(err, ErrInvalidHex):
		return "invalid_hex"
	default:
		return "unknown"
	}
}
