package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies oracle failures.
type ErrorType string

const (
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured oracle error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
	Model      string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface so the retry
// package can check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured oracle error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var oracleErr *Error
	if errors.As(err, &oracleErr) {
		return oracleErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	classified := func(t ErrorType, msg string, retryable bool) *Error {
		e := NewError(t, msg, retryable, err)
		e.StatusCode = statusCode
		return e
	}

	// Authentication errors (not retryable)
	if strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication") {
		return classified(ErrorTypeAuth, "authentication failed", false)
	}

	// Model not found (not retryable without config change)
	if strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")) {
		return classified(ErrorTypeModel, "model not found", false)
	}

	// Endpoint not found (not retryable without config change)
	if strings.Contains(errStr, "404") {
		return classified(ErrorTypeEndpoint, "endpoint not found", false)
	}

	// Connection errors (may be transient)
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset") {
		return classified(ErrorTypeEndpoint, "connection failed", true)
	}

	// Timeout and deadline exceeded (retryable)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") {
		return classified(ErrorTypeEndpoint, "request timeout", true)
	}

	// Rate limiting and overload (retryable after backoff)
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "529") ||
		strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded") {
		return classified(ErrorTypeUnknown, "rate limited", true)
	}

	// 5xx server errors (retryable)
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		return classified(ErrorTypeEndpoint, "server error", true)
	}

	return classified(ErrorTypeUnknown, "oracle error", false)
}

// IsRetryable returns true if the error is a retryable oracle error.
func IsRetryable(err error) bool {
	var oracleErr *Error
	if errors.As(err, &oracleErr) {
		return oracleErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var oracleErr *Error
	if errors.As(err, &oracleErr) {
		return oracleErr.Type
	}
	return ErrorTypeUnknown
}
