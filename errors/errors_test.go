package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"collaborator unavailable", ErrCollaboratorUnavailable, true},
		{"connection timeout", ErrConnectionTimeout, true},
		{"request failed", ErrRequestFailed, true},
		{"rate limited", ErrRateLimited, true},
		{"collection unavailable", ErrCollectionUnavailable, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid response shape", ErrInvalidResponseShape, false},
		{"missing config", ErrMissingConfig, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network connection failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid response shape", ErrInvalidResponseShape, true},
		{"embedding mismatch", ErrEmbeddingMismatch, true},
		{"dimension mismatch", ErrDimensionMismatch, true},
		{"invalid query", ErrInvalidQuery, true},
		{"invalid topK", ErrInvalidTopK, true},
		{"transient error", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrInvalidConfig) {
		t.Error("ErrInvalidConfig should be fatal")
	}
	if !IsFatal(ErrMissingConfig) {
		t.Error("ErrMissingConfig should be fatal")
	}
	if IsFatal(ErrConnectionTimeout) {
		t.Error("ErrConnectionTimeout should not be fatal")
	}
	if IsFatal(nil) {
		t.Error("nil should not be fatal")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"transient", ErrConnectionTimeout, ErrorTransient},
		{"invalid", ErrInvalidResponseShape, ErrorInvalid},
		{"fatal", ErrMissingConfig, ErrorFatal},
		{"unknown defaults to transient", fmt.Errorf("something odd"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("Classify() = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	wrapped := Wrap(base, "VectorDB", "Search", "search points")
	if wrapped == nil {
		t.Fatal("Wrap returned nil")
	}

	want := "VectorDB.Search: search points failed: boom"
	if wrapped.Error() != want {
		t.Errorf("Wrap() message = %q, want %q", wrapped.Error(), want)
	}

	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}

	if Wrap(nil, "C", "M", "a") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestWrapClassification(t *testing.T) {
	base := errors.New("boom")

	transient := WrapTransient(base, "Embedder", "Generate", "call inference service")
	if !IsTransient(transient) {
		t.Error("WrapTransient result should classify as transient")
	}

	invalid := WrapInvalid(base, "Embedder", "decode", "parse response")
	if !IsInvalid(invalid) {
		t.Error("WrapInvalid result should classify as invalid")
	}

	fatal := WrapFatal(base, "Config", "Validate", "check backend")
	if !IsFatal(fatal) {
		t.Error("WrapFatal result should classify as fatal")
	}

	// Classification survives further wrapping
	rewrapped := fmt.Errorf("outer: %w", transient)
	if !IsTransient(rewrapped) {
		t.Error("classification should survive fmt.Errorf wrapping")
	}

	// Component context appears in the message
	if !strings.Contains(transient.Error(), "Embedder.Generate") {
		t.Errorf("expected component context in %q", transient.Error())
	}
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	rc := cfg.ToRetryConfig()

	if rc.MaxAttempts != cfg.MaxRetries+1 {
		t.Errorf("MaxAttempts = %d, want %d", rc.MaxAttempts, cfg.MaxRetries+1)
	}
	if rc.InitialDelay != cfg.InitialDelay || rc.MaxDelay != cfg.MaxDelay {
		t.Errorf("delays not carried over: %+v", rc)
	}
	if !rc.AddJitter {
		t.Error("AddJitter should be enabled")
	}
}
