package nn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrInvalidLayerSize   = errors.New("size of layer must be larger than 0")
	ErrFrozenTopology     = errors.New("topology cannot change once training has started")
	ErrFinalLayerExists   = errors.New("final layer already added")
	ErrNoFinalLayer       = errors.New("network has no final layer")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrUnsupportedMethod  = errors.New("training method is not supported")
	ErrUnpairedSoftmax    = errors.New("softmax output layer needs a cost that folds its derivative")
	ErrWeightCursor       = errors.New("weight buffer cursor contract violated")
	ErrUnknownNeuronClass = errors.New("unknown neuron class")
)

// ValidationError reports a bad argument. Nothing has been mutated when it is
// returned.
type ValidationError struct {
	Op      string // operation that rejected the input
	Details string
	Err     error // one of the sentinel errors above, if any
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Details)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(op string, err error, format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{Op: op, Details: fmt.Sprintf(format, args...), Err: err})
}

// UnsupportedConfigError is fatal to the current call.
type UnsupportedConfigError struct {
	Setting string
	Value   string
	Err     error
}

func (e *UnsupportedConfigError) Error() string {
	return fmt.Sprintf("unsupported %s %q: %v", e.Setting, e.Value, e.Err)
}

func (e *UnsupportedConfigError) Unwrap() error { return e.Err }

// DeserializationError aborts a model load as a whole.
type DeserializationError struct {
	Field string
	Index int // position within a list field, -1 otherwise
	Err   error
}

func (e *DeserializationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("decode %s[%d]: %v", e.Field, e.Index, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }
