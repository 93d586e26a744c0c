package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Decoding errors. Every error returned by this module unwraps to one of
// these, so callers classify failures with errors.Is.
var (
	// ErrMalformed reports truncated or structurally invalid input.
	ErrMalformed = errors.New("malformed protobuf input")
	// ErrUnsupportedWireType reports a group wire type.
	ErrUnsupportedWireType = errors.New("unsupported wire type")
	// ErrIncompletePacked reports trailing bytes inside a packed blob that do
	// not form a whole element.
	ErrIncompletePacked = errors.New("incomplete packed element")
)

// Phases name the construct that was being processed when an error occurred.
const (
	PhaseTag    = "tag"
	PhaseLength = "length"
	PhaseValue  = "value"
	PhaseSkip   = "skip"
	PhaseEncode = "encode"
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["results", "#3"]
	Phase     string   // one of the Phase* constants, may be empty
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	var sb strings.Builder
	if len(e.FieldPath) > 0 {
		sb.WriteString("error at proto path ")
		sb.WriteString(strings.Join(e.FieldPath, "."))
	} else {
		sb.WriteString("error")
	}
	if e.Phase != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Phase)
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility.
func (e *FieldError) Is(target error) bool {
	_, ok := target.(*FieldError)
	return ok
}

// Errorf returns an error wrapping kind (one of the sentinels) with a detail message.
func Errorf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// WithPhase attaches a phase to err unless it already carries one.
func WithPhase(err error, phase string) error {
	if err == nil {
		return nil
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		if fe.Phase != "" {
			return err
		}
		return &FieldError{FieldPath: fe.FieldPath, Phase: phase, Err: fe.Err}
	}
	return &FieldError{Phase: phase, Err: err}
}

// WrapWithField prefixes the error's field path with label.
func WrapWithField(err error, label string) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{label}, fe.FieldPath...),
			Phase:     fe.Phase,
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{label},
		Err:       err,
	}
}

// FieldLabel returns name, or "#num" when the field has no name.
func FieldLabel(name string, num FieldNumber) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("#%d", num)
}
