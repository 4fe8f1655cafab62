package recorder

import (
	"errors"
	"fmt"
)

// ErrReplayExhausted reports that a replayed stream ran out of recorded
// data while live execution continued. It is reportable, not fatal: the
// last replayed value is held constant downstream.
var ErrReplayExhausted = errors.New("replay stream exhausted")

// SessionError wraps a recording or replay session failure.
type SessionError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SessionError) Unwrap() error { return e.Cause }

func wrapSession(op string, cause error) *SessionError {
	return &SessionError{Op: op, Cause: cause}
}
