package explore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailableInput means the data for a scale could not be located.
	// The (operation, scale) pair is skipped.
	ErrUnavailableInput = errors.New("input unavailable")
	// ErrExecution means a configuration could not be run. A failed record
	// is emitted and traversal continues.
	ErrExecution = errors.New("execution failed")
	// ErrBaselineUnavailable blocks every speedup decision for a pair.
	ErrBaselineUnavailable = errors.New("baseline unavailable")
	// ErrInvariantViolation is a bug in the traversal itself and aborts the batch.
	ErrInvariantViolation = errors.New("invariant violation")
)

func invariantf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, a...))
}

// IsFatal reports whether err must stop the batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
