package engine

import (
	"errors"
	"fmt"
)

// ErrConfirmationDenied is the error behind a Result synthesized when the
// operator denies a destructive Action.
var ErrConfirmationDenied = errors.New("denied by operator")

// ErrConfirmationTimeout is the error behind a Result synthesized when a
// ConfirmationRequest expires with no decision. Timeout counts as denial.
var ErrConfirmationTimeout = errors.New("confirmation timed out, treated as denied")

// CapabilityError wraps a failure raised by a capability handler. It is
// always caught at the Dispatcher boundary and converted to a failed Result.
type CapabilityError struct {
	Module   string
	Function string
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s.%s failed: %v", e.Module, e.Function, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// GoalExhausted signals that an autonomous Goal spent its consecutive-failure
// budget. The Goal transitions to failed with this as its summary.
type GoalExhausted struct {
	Failures  int
	LastError string
}

func (e *GoalExhausted) Error() string {
	return fmt.Sprintf("goal abandoned after %d consecutive step failures (last error: %s)", e.Failures, e.LastError)
}
