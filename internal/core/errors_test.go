// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	err := WrapError(ErrModelFileMissing, errors.New("/opt/models/model_ep30.keras"))
	want := "[MODEL_FILE_MISSING] model file not found: /opt/models/model_ep30.keras"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrBacktestRuntime, ErrBacktestRuntime) {
		t.Error("same error should match")
	}
	wrapped := fmt.Errorf("acquire: %w", WrapError(ErrBacktestEmptyResult, nil))
	if !errors.Is(wrapped, ErrBacktestEmptyResult) {
		t.Error("wrapped error should match by code")
	}
	if errors.Is(wrapped, ErrBacktestRuntime) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrEntryPointUnavailable, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrEntryPointUnavailable.Code {
		t.Error("code not preserved")
	}
}
