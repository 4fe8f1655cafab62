package executor

import (
	"errors"
	"fmt"
)

// StageError reports a single stage's component failure during a cycle.
// Stage errors are recoverable: they are caught at the loop boundary and
// routed to the recovery manager, never propagated to the caller.
type StageError struct {
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error { return e.Cause }

// InterfaceError reports a vehicle I/O failure. It is fatal unless the
// mission declares a recovery binding for the trajectory_tracking stage.
type InterfaceError struct {
	Op    string // "acquire" or "dispatch"
	Cause error
}

// Error implements the error interface.
func (e *InterfaceError) Error() string {
	return fmt.Sprintf("vehicle interface %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *InterfaceError) Unwrap() error { return e.Cause }

// IsInterfaceError reports whether err is a vehicle interface error.
func IsInterfaceError(err error) bool {
	var ifaceErr *InterfaceError
	return errors.As(err, &ifaceErr)
}
