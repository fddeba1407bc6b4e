package assemble

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConfigurationError represents an invalid saga configuration: a retry
// attempt count below one, or a run requested on a saga that has no
// operations or has already executed.
type ConfigurationError struct {
	error
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.error
}

func configurationFailed(format string, args ...any) error {
	return &ConfigurationError{fmt.Errorf(format, args...)}
}

// DeclarationError represents an invalid operation declaration: no values,
// more than an action/compensation pair, a non-function first element, or
// bound arguments that do not fit the function's signature.
type DeclarationError struct {
	error
}

// Unwrap returns the underlying error.
func (e *DeclarationError) Unwrap() error {
	return e.error
}

func declarationFailed(format string, args ...any) error {
	return &DeclarationError{fmt.Errorf(format, args...)}
}

// ActionError represents an error produced by a saga action, surfaced only
// after its retry attempts are exhausted.
type ActionError struct {
	error
}

// ActionFailed wraps an action-provided error in an ActionError.
func ActionFailed(err error) error {
	return &ActionError{fmt.Errorf("action failed: %w", err)}
}

// Unwrap returns the underlying error.
func (e *ActionError) Unwrap() error {
	return e.error
}

// CompensationError represents an error produced by a single compensation.
// It is always caught locally and reported only inside SagaError; it never
// masks the action error that triggered the rollback.
type CompensationError struct {
	error
}

// CompensationFailed wraps a compensation-provided error in a
// CompensationError.
func CompensationFailed(err error) error {
	return &CompensationError{fmt.Errorf("compensation failed: %w", err)}
}

// Unwrap returns the underlying error.
func (e *CompensationError) Unwrap() error {
	return e.error
}

// SagaError is the sole error crossing the execution boundary on a failed
// run.  It identifies the failing operation, carries its error, and
// aggregates the outputs and errors of the compensation sweep.
//
// CompensationResults and CompensationErrors are nil when no compensation
// ran, so callers can distinguish "nothing to compensate" from "every
// compensation succeeded".
type SagaError struct {
	// RunID identifies the saga run that failed.
	RunID uuid.UUID

	// OperationIndex is the declaration index of the failing operation.
	OperationIndex int

	// OperationName is the resolved name of the failing operation.
	OperationName string

	// Err is the failing action's error, wrapped in an ActionError.
	Err error

	// CompensationResults holds the outputs of the compensations that
	// succeeded during the rollback sweep, or nil if none ran.
	CompensationResults []any

	// CompensationErrors holds the errors of the compensations that failed
	// during the rollback sweep, each wrapped in a CompensationError, or
	// nil if none failed.
	CompensationErrors []error
}

// Error implements the error interface for SagaError.
func (e *SagaError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "saga failed at operation %d (%s): %v", e.OperationIndex, e.OperationName, e.Err)
	if len(e.CompensationErrors) > 0 {
		fmt.Fprintf(&sb, "; %d compensation error(s)", len(e.CompensationErrors))
	}
	return sb.String()
}

// Unwrap returns the failing action's error.
func (e *SagaError) Unwrap() error {
	return e.Err
}
