package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrUnstable indicates the simulation became numerically unstable.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")

	// ErrSingular indicates the dynamics could not be solved at the current state.
	ErrSingular = errors.New("dynamo: singular dynamics (mass matrix not invertible)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates a buffer whose shape does not match the
	// problem. It is raised by panic: it is a programming error.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrInvalidConfig indicates a structurally impossible construction, such
	// as a trajectory with no steps.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")
)

// RolloutError reports a step that failed while driving a World forward.
type RolloutError struct {
	Step    int
	State   State
	Wrapped error
}

func (e *RolloutError) Error() string {
	return fmt.Sprintf("rollout failed at step %d: %v", e.Step, e.Wrapped)
}

func (e *RolloutError) Unwrap() error {
	return e.Wrapped
}

// DimensionError builds the panic value used for shape violations.
func DimensionError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has length %d, want %d", ErrDimensionMismatch, what, got, want)
}

// ShapeError builds the panic value used for matrix shape violations.
func ShapeError(what string, gotR, gotC, wantR, wantC int) error {
	return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrDimensionMismatch, what, gotR, gotC, wantR, wantC)
}
