package planning

import (
	"errors"
	"fmt"
)

// Sentinels for matching error kinds with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrStateTransition = errors.New("illegal state transition")
	ErrNotFound        = errors.New("not found")
)

// ValidationError reports malformed input: an empty prompt, a duplicate
// question key, skipping a required question or an invalid plan.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StateTransitionError reports an operation attempted outside the state in
// which it is legal. From is the session's state at the time of the call; To
// is the requested target, empty when the operation itself has no target.
type StateTransitionError struct {
	Op     string
	From   State
	To     State
	Reason string
}

func (e *StateTransitionError) Error() string {
	msg := fmt.Sprintf("%s: cannot transition from %s", e.Op, e.From)
	if e.To != "" {
		msg += " to " + string(e.To)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrStateTransition.
func (e *StateTransitionError) Is(target error) bool {
	return target == ErrStateTransition
}

// NotFoundError reports a question index outside the interview.
type NotFoundError struct {
	Index int
	Total int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("question %d not found (interview has %d questions)", e.Index, e.Total)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
