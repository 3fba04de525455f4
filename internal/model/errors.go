package model

import (
	"errors"
	"fmt"
)

// FailureCode classifies an operation failure. Every failure returned to a
// caller carries exactly one code plus a human-readable reason.
type FailureCode string

const (
	CodeNotFound           FailureCode = "not_found"
	CodeInvalidInput       FailureCode = "invalid_input"
	CodePermanentlyLocked  FailureCode = "permanently_locked"
	CodeTemporarilyLocked  FailureCode = "temporarily_locked"
	CodeInsufficientFunds  FailureCode = "insufficient_funds"
	CodeLimitExceeded      FailureCode = "limit_exceeded"
	CodeUnauthorized       FailureCode = "unauthorized"
	CodePersistenceFailure FailureCode = "persistence_failure"
)

// Failure is a tagged, recoverable business failure
type Failure struct {
	Code    FailureCode
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// NewFailure builds a Failure with the given code and message
func NewFailure(code FailureCode, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// Failuref builds a Failure with a formatted message
func Failuref(code FailureCode, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the failure code from err, or "" if err carries none
func CodeOf(err error) FailureCode {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return ""
}

// IsCode reports whether err is a Failure with the given code
func IsCode(err error, code FailureCode) bool {
	return CodeOf(err) == code
}

// Field-level validation errors used by Account.Validate and the stores
var (
	ErrInvalidCardNumber    = errors.New("card number must be 16 digits")
	ErrInvalidPIN           = errors.New("pin must be 4-6 digits")
	ErrHolderNameRequired   = errors.New("holder name is required")
	ErrNegativeBalance      = errors.New("balance must not be negative")
	ErrInvalidWithdrawLimit = errors.New("withdraw limit must be positive")
)
