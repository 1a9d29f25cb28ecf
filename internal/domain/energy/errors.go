package energy

import (
	"errors"
	"fmt"
)

// Sentinel kinds for analysis errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrDegenerateInput = errors.New("degenerate input")
)

// InvalidInputError reports an empty or malformed signal or stem set.
type InvalidInputError struct {
	Label  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%s: stem %q: %s", ErrInvalidInput, e.Label, e.Reason)
}

// Is matches ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// DegenerateInputError reports a stem set whose total energy is zero.
type DegenerateInputError struct {
	Stems int
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("%s: total energy of %d stems is zero", ErrDegenerateInput, e.Stems)
}

// Is matches ErrDegenerateInput.
func (e *DegenerateInputError) Is(target error) bool { return target == ErrDegenerateInput }
