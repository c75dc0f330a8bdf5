package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConfig       = errors.New("configuration error")
	ErrUnsupported  = errors.New("unsupported file type")
	ErrExtraction   = errors.New("text extraction failed")
	ErrHosted       = errors.New("hosted extraction failed")
	ErrValidation   = errors.New("validation failed")
	ErrLedger       = errors.New("ledger error")
	ErrPersist      = errors.New("write failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HostedErrorf builds an error that aborts a hosted batch.
func HostedErrorf(format string, args ...any) error {
	return NewAppError("HOSTED_ERROR", fmt.Sprintf(format, args...), ErrHosted)
}

// IsUsage reports whether err stems from bad flags or configuration.
func IsUsage(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrInvalidInput)
}
