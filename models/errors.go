package models

import (
	"errors"
	"fmt"
)

// Error codes used in reports, API responses and internal error handling.
const (
	ErrCodeAssertionTimeout  = "ASSERTION_TIMEOUT"
	ErrCodeTargetUnreachable = "TARGET_UNREACHABLE"
	ErrCodeCaptureFailed     = "CAPTURE_FAILED"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeQueueFull         = "QUEUE_FULL"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Sentinel kinds for errors.Is. A *VerificationError matches the kind its
// Code belongs to.
var (
	// ErrVerificationFailure covers readiness/assertion timeouts and
	// failed screenshot captures.
	ErrVerificationFailure = errors.New("verification failure")

	// ErrTargetUnreachable covers navigation failures: connection refused,
	// missing files, navigation timeouts.
	ErrTargetUnreachable = errors.New("target unreachable")
)

// ErrorDetail is the structured error in API responses and reports.
type ErrorDetail struct {
	Code    string `json:"code"`
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
}

// VerificationError is the internal error type carrying an error code and
// the label of the step that produced it.
// It implements the error interface and supports error wrapping via Unwrap.
type VerificationError struct {
	Code    string
	Step    string
	Message string
	Err     error // wrapped original error
}

func (e *VerificationError) Error() string {
	prefix := e.Code
	if e.Step != "" {
		prefix = fmt.Sprintf("%s: step %q", e.Code, e.Step)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel kind for this error's code.
func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrVerificationFailure:
		return e.Code == ErrCodeAssertionTimeout || e.Code == ErrCodeCaptureFailed
	case ErrTargetUnreachable:
		return e.Code == ErrCodeTargetUnreachable
	}
	return false
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(code, step, message string, err error) *VerificationError {
	return &VerificationError{Code: code, Step: step, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *VerificationError) ToDetail() *ErrorDetail {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return &ErrorDetail{Code: e.Code, Step: e.Step, Message: msg}
}

// AsVerificationError unwraps err into a *VerificationError, wrapping
// unknown errors as INTERNAL_ERROR.
func AsVerificationError(err error) *VerificationError {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve
	}
	return NewVerificationError(ErrCodeInternal, "", "unexpected error", err)
}
