package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrStepNotExpected is returned when a submission targets a step the engine
// is not waiting on. The session is left untouched.
var ErrStepNotExpected = errors.New("step is not awaiting submission")

// MissingInputError signals that an interactive step has no staged input yet.
// The engine treats it as "stay in waiting_for_input", never as a failure.
type MissingInputError struct {
	Slot string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input for slot %q", e.Slot)
}

// ComponentExecutionError is a retriable step failure: bad provider response,
// unresolvable required path, invalid collection source. The cursor does not
// advance past the failing step.
type ComponentExecutionError struct {
	StepID string
	Reason string
	Cause  error
}

func (e *ComponentExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("step %q: %s: %v", e.StepID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("step %q: %s", e.StepID, e.Reason)
}

func (e *ComponentExecutionError) Unwrap() error { return e.Cause }

// UnknownComponentError means the document references a component this
// runtime version does not provide. Fatal for the step, never retried.
type UnknownComponentError struct {
	Name string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component %q", e.Name)
}

// InvalidComponentConfigError means a step's parameter map does not match the
// shape its handler requires. Configuration-time class, not retried.
type InvalidComponentConfigError struct {
	StepID string
	Reason string
}

func (e *InvalidComponentConfigError) Error() string {
	return fmt.Sprintf("step %q: invalid component configuration: %s", e.StepID, e.Reason)
}
