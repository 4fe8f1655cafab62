package component

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a specific component failure.
type ErrorCode string

const (
	// ErrCodeUnknownComponent indicates the identifier is not registered.
	ErrCodeUnknownComponent ErrorCode = "unknown_component"

	// ErrCodeConstruction indicates the factory failed or panicked during
	// instantiation.
	ErrCodeConstruction ErrorCode = "construction_failed"

	// ErrCodeAlreadyRegistered indicates a duplicate registration.
	ErrCodeAlreadyRegistered ErrorCode = "already_registered"

	// ErrCodeWrongCategory indicates the constructed component does not
	// satisfy its stage's capability interface.
	ErrCodeWrongCategory ErrorCode = "wrong_category"

	// ErrCodeInvalidArgs indicates constructor arguments were malformed.
	ErrCodeInvalidArgs ErrorCode = "invalid_args"
)

// Error is a component registry or construction error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches two component errors by code.
func (e *Error) Is(target error) bool {
	var compErr *Error
	if errors.As(target, &compErr) {
		return e.Code == compErr.Code
	}
	return false
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps cause with component error context.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewUnknownComponentError reports an unregistered identifier.
func NewUnknownComponentError(id string) *Error {
	return NewError(ErrCodeUnknownComponent, fmt.Sprintf("component %q is not registered", id))
}

// NewConstructionError reports a factory failure for the identifier.
func NewConstructionError(id string, cause error) *Error {
	return WrapError(ErrCodeConstruction, fmt.Sprintf("failed to construct component %q", id), cause)
}

// IsUnknownComponentError reports whether err is an unknown-component error.
func IsUnknownComponentError(err error) bool {
	var compErr *Error
	return errors.As(err, &compErr) && compErr.Code == ErrCodeUnknownComponent
}

// IsConstructionError reports whether err is a construction error.
func IsConstructionError(err error) bool {
	var compErr *Error
	return errors.As(err, &compErr) && compErr.Code == ErrCodeConstruction
}
