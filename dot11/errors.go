package dot11

import (
	"errors"
	"fmt"
)

// Structural errors. These always fail a decode.
var (
	// ErrTruncated is returned when a buffer ends inside the fixed fields
	// or inside an element header.
	ErrTruncated = errors.New("dot11: truncated frame")

	// ErrElementOverrun is returned when an element's length would read
	// past the end of the buffer.
	ErrElementOverrun = errors.New("dot11: element length overruns buffer")

	// ErrElementLength is returned when a mandatory element's length is
	// outside its descriptor's bounds or its payload is malformed.
	ErrElementLength = errors.New("dot11: invalid element length")

	// ErrMissingElement is returned when a mandatory element is absent.
	ErrMissingElement = errors.New("dot11: missing mandatory element")

	// ErrActionMismatch is returned when an action frame's category or
	// action field does not match the requested frame type.
	ErrActionMismatch = errors.New("dot11: action category mismatch")

	// ErrUnknownFrameType is returned for a FrameType with no table.
	ErrUnknownFrameType = errors.New("dot11: unknown frame type")
)

// ErrNilFrame is returned when Pack is given no frame to encode.
var ErrNilFrame = errors.New("dot11: nil frame")

// noFrame marks an EncodeError raised before any frame type was known.
const noFrame FrameType = -1

// Encode errors.
var (
	// ErrOverflow is returned when a payload or instance count exceeds
	// its descriptor's maximum. The packer never truncates.
	ErrOverflow = errors.New("dot11: element exceeds maximum size")

	// ErrElementNotPermitted is returned when a present element is not
	// listed in the frame type's table.
	ErrElementNotPermitted = errors.New("dot11: element not permitted in frame type")
)

// Recoverable anomalies, reported as warnings.
var (
	ErrDuplicateElement       = errors.New("dot11: duplicate element")
	ErrTooManyElements        = errors.New("dot11: too many element instances")
	ErrSequenceTruncated      = errors.New("dot11: element sequence truncated to capacity")
	ErrRSNCapabilitiesMissing = errors.New("dot11: RSN capabilities missing, defaulted")
)

var (
	// errMalformed is wrapped by element payload decoders.
	errMalformed = errors.New("dot11: malformed element payload")

	errFixedField = errors.New("dot11: invalid fixed field")
)

func malformed(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", errMalformed, fmt.Sprintf(format, v...))
}

// A DecodeError describes a structural failure while unpacking a frame.
type DecodeError struct {
	Frame  FrameType
	Key    Key
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if !attributable(e.Err) {
		return fmt.Sprintf("%v: %s at offset %d", e.Err, e.Frame, e.Offset)
	}
	return fmt.Sprintf("%v: %s element %s at offset %d", e.Err, e.Frame, e.Key, e.Offset)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// An EncodeError describes why a frame could not be packed.
type EncodeError struct {
	Frame FrameType
	Key   Key
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Frame == noFrame {
		return e.Err.Error()
	}
	if !attributable(e.Err) {
		return fmt.Sprintf("%v: %s", e.Err, e.Frame)
	}
	return fmt.Sprintf("%v: %s element %s", e.Err, e.Frame, e.Key)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error { return e.Err }

// attributable reports whether err concerns a single element rather than
// the frame as a whole.
func attributable(err error) bool {
	for _, target := range []error{ErrTruncated, ErrActionMismatch, ErrUnknownFrameType, ErrNilFrame, errFixedField} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}
