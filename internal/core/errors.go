// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
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

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Acquisition errors. Each one degrades to the example record.
	ErrEntryPointUnavailable = &Error{Code: "ENTRY_POINT_UNAVAILABLE", Message: "backtest entry point unavailable"}
	ErrModelFileMissing      = &Error{Code: "MODEL_FILE_MISSING", Message: "model file not found"}
	ErrBacktestRuntime       = &Error{Code: "BACKTEST_RUNTIME_ERROR", Message: "backtest failed"}
	ErrBacktestEmptyResult   = &Error{Code: "BACKTEST_EMPTY_RESULT", Message: "backtest returned no results"}

	// Request errors
	ErrInvalidMode = &Error{Code: "INVALID_MODE", Message: "unknown trade filter mode"}
	ErrNoResults   = &Error{Code: "NO_RESULTS", Message: "no results for session"}

	// Session errors
	ErrSessionNotFound = &Error{Code: "SESSION_NOT_FOUND", Message: "session not found"}
	ErrSessionBusy     = &Error{Code: "SESSION_BUSY", Message: "backtest already running for session"}
	ErrRateLimited     = &Error{Code: "RATE_LIMITED", Message: "too many backtest runs"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Auth errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// LLM errors
	ErrLLMFailed       = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
	ErrInsightDisabled = &Error{Code: "INSIGHT_DISABLED", Message: "no LLM provider configured"}
)
