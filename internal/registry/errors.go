package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by registration and lookup.
var (
	// ErrDuplicateAction is returned when registering a name twice.
	ErrDuplicateAction = errors.New("duplicate action")
	// ErrNotFound is returned when looking up an unregistered action.
	ErrNotFound = errors.New("action not found")
	// ErrSealed is returned when registering after the init phase.
	ErrSealed = errors.New("registry sealed")
)

// InvalidArgumentsError reports a schema mismatch in a dispatch request.
// It names the offending field so the model can self-correct.
type InvalidArgumentsError struct {
	Action string
	Field  string
	Err    error
}

func (e *InvalidArgumentsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid arguments for %s: field %q: %v", e.Action, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid arguments for %s: %v", e.Action, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

// FailureError wraps a handler-reported failure. Dispatch converts raw
// handler faults (including panics) into this type; it never propagates
// them to the caller.
type FailureError struct {
	Action string
	Reason string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("action %s failed: %s", e.Action, e.Reason)
}
