package mission

import (
	"errors"
	"fmt"
)

// ConfigErrorCode identifies a specific configuration failure.
type ConfigErrorCode string

const (
	// ErrConfigParse indicates a document could not be read or parsed.
	ErrConfigParse ConfigErrorCode = "parse_failed"

	// ErrConfigCyclicInclude indicates the include graph is self-referential.
	ErrConfigCyclicInclude ConfigErrorCode = "cyclic_include"

	// ErrConfigMissingField indicates a required section is absent after merge.
	ErrConfigMissingField ConfigErrorCode = "missing_field"

	// ErrConfigUnknownVariant indicates a requested variant does not exist.
	ErrConfigUnknownVariant ConfigErrorCode = "unknown_variant"

	// ErrConfigInvalid indicates the merged document failed validation.
	ErrConfigInvalid ConfigErrorCode = "validation_failed"
)

// ConfigError is a configuration-resolution error. Configuration errors are
// fatal before run start and never reach the execution loop.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
	Cause   error

	// Field names the offending section or key, when known.
	Field string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As traversal.
func (e *ConfigError) Unwrap() error { return e.Cause }

// Is matches two ConfigErrors by code.
func (e *ConfigError) Is(target error) bool {
	var cfgErr *ConfigError
	if errors.As(target, &cfgErr) {
		return e.Code == cfgErr.Code
	}
	return false
}

// NewConfigError creates a ConfigError with the given code and message.
func NewConfigError(code ConfigErrorCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// WrapConfigError wraps an underlying error with configuration context.
func WrapConfigError(code ConfigErrorCode, message string, cause error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: cause}
}

// NewMissingFieldError reports a required top-level section that is absent.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Code:    ErrConfigMissingField,
		Message: "required section is missing",
		Field:   field,
	}
}

// NewUnknownVariantError reports a variant name with no overlay document.
func NewUnknownVariantError(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrConfigUnknownVariant,
		Message: fmt.Sprintf("variant %q is not defined", name),
		Field:   "variants",
	}
}

// NewCyclicIncludeError reports an include chain that revisits a document.
func NewCyclicIncludeError(chain []string) *ConfigError {
	return &ConfigError{
		Code:    ErrConfigCyclicInclude,
		Message: fmt.Sprintf("include cycle: %v", chain),
	}
}

// IsMissingFieldError reports whether err is a missing-field ConfigError.
func IsMissingFieldError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Code == ErrConfigMissingField
}

// IsUnknownVariantError reports whether err is an unknown-variant ConfigError.
func IsUnknownVariantError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Code == ErrConfigUnknownVariant
}

// IsCyclicIncludeError reports whether err is a cyclic-include ConfigError.
func IsCyclicIncludeError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Code == ErrConfigCyclicInclude
}
