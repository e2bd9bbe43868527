// Package errors provides standardized error handling for the generation
// orchestration layer.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeQuantityCapped     ErrorCode = "QUANTITY_CAP_EXCEEDED"
	ErrCodeInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeSubmissionFailed   ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"
	ErrCodePollFetchFailed    ErrorCode = "POLL_FETCH_FAILED"
	ErrCodeCancelFailed       ErrorCode = "CANCEL_FAILED"
	ErrCodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Field-Level Validation Errors
// ==========================

// FieldError is a single field-scoped validation failure. Callers must be
// able to point at the offending field, so these are never collapsed into
// one opaque error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationErrors is the full set of field errors for one request.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s (and %d more)", ve[0].Field, ve[0].Message, len(ve)-1)
}

// Messages returns a simple list of "field: message" strings.
func (ve ValidationErrors) Messages() []string {
	out := make([]string, len(ve))
	for i, fe := range ve {
		out[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return out
}

// ForField returns the errors recorded against a specific field.
func (ve ValidationErrors) ForField(field string) []FieldError {
	var out []FieldError
	for _, fe := range ve {
		if fe.Field == field {
			out = append(out, fe)
		}
	}
	return out
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError wraps field errors as a non-retryable StandardError.
func NewValidationFailedError(fieldErrs ValidationErrors) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   fmt.Sprintf("%d field error(s)", len(fieldErrs)),
		Retryable: false,
		Metadata:  map[string]interface{}{"fieldErrors": fieldErrs},
		Timestamp: time.Now().UTC(),
		cause:     fieldErrs,
	}
}

// NewQuotaExceededError creates a non-retryable admission rejection. The fix
// is "wait or upgrade", not "change input".
func NewQuotaExceededError(queueDepth, capacity int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuotaExceeded,
		Message:   "Concurrent generation limit reached",
		Details:   fmt.Sprintf("queueDepth: %d, capacity: %d", queueDepth, capacity),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQuantityCapExceededError creates a non-retryable per-request cap rejection.
func NewQuantityCapExceededError(requested, cap int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuantityCapped,
		Message:   "Requested output quantity exceeds the per-request cap",
		Details:   fmt.Sprintf("requested: %d, cap: %d", requested, cap),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientFundsError creates a non-retryable balance rejection.
func NewInsufficientFundsError(estimated int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientFunds,
		Message:   "Available balance cannot cover the estimated cost",
		Details:   fmt.Sprintf("estimatedCost: %d", estimated),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionFailedError creates the terminal submission error surfaced
// after the retry budget is exhausted.
func NewSubmissionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "Job submission failed after exhausting retries",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSubmissionRejectedError creates a non-retryable server-side rejection (4xx).
func NewSubmissionRejectedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionRejected,
		Message:   "Job service rejected the submission",
		Details:   fmt.Sprintf("status: %d, body: %s", status, body),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPollFetchError creates a retryable poll failure. These are logged and the
// tick is skipped; they never fail the loop.
func NewPollFetchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePollFetchFailed,
		Message:   "Workflow status fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCancelFailedError creates a retryable cancel-call failure. The next poll
// tick is the source of truth, so this is advisory.
func NewCancelFailedError(workflowID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCancelFailed,
		Message:   "External cancel request failed",
		Details:   fmt.Sprintf("workflowId: %s, error: %s", workflowID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewConfigurationError marks a deployment/programming defect such as an
// unregistered engine id. Fail fast, never swallow.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid orchestrator configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// CodeOf extracts the ErrorCode from an error chain, or "" when none.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether an error chain carries a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// FieldErrorsOf extracts field-level errors from an error chain, or nil.
func FieldErrorsOf(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
