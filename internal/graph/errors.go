package graph

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a specific graph-build failure. Graph errors are
// fatal before run start.
type ErrorCode string

const (
	// ErrCodeCyclicDependency indicates no topological order exists.
	ErrCodeCyclicDependency ErrorCode = "cyclic_dependency"

	// ErrCodeUnknownStage indicates a dependency names an undeclared stage.
	ErrCodeUnknownStage ErrorCode = "unknown_stage"

	// ErrCodeBindFailed indicates a stage's component could not be
	// constructed or validated.
	ErrCodeBindFailed ErrorCode = "bind_failed"

	// ErrCodeEmptyGraph indicates no stage is both declared and bound.
	ErrCodeEmptyGraph ErrorCode = "empty_graph"
)

// Error is a computation-graph build error. It names the offending stage
// when one is known.
type Error struct {
	Code    ErrorCode
	Message string
	Stage   string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s] stage %q: %s", e.Code, e.Stage, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two graph errors by code.
func (e *Error) Is(target error) bool {
	var graphErr *Error
	if errors.As(target, &graphErr) {
		return e.Code == graphErr.Code
	}
	return false
}

// NewCyclicDependencyError reports that the declared ordering admits no
// topological order. remaining lists the stages caught in the cycle.
func NewCyclicDependencyError(remaining []string) *Error {
	return &Error{
		Code:    ErrCodeCyclicDependency,
		Message: fmt.Sprintf("dependency cycle among stages %v", remaining),
	}
}

// NewUnknownStageError reports a dependency on an undeclared stage.
func NewUnknownStageError(stage, dep string) *Error {
	return &Error{
		Code:    ErrCodeUnknownStage,
		Message: fmt.Sprintf("depends on undeclared stage %q", dep),
		Stage:   stage,
	}
}

// NewBindError reports a stage whose component could not be bound.
func NewBindError(stage string, cause error) *Error {
	return &Error{
		Code:    ErrCodeBindFailed,
		Message: "failed to bind component",
		Stage:   stage,
		Cause:   cause,
	}
}

// IsCyclicDependencyError reports whether err is a cyclic-dependency error.
func IsCyclicDependencyError(err error) bool {
	var graphErr *Error
	return errors.As(err, &graphErr) && graphErr.Code == ErrCodeCyclicDependency
}

// IsBindError reports whether err is a bind failure.
func IsBindError(err error) bool {
	var graphErr *Error
	return errors.As(err, &graphErr) && graphErr.Code == ErrCodeBindFailed
}
