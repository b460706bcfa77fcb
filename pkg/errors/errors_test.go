package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "test message: %s", "value")

	if err.Code != ErrCodeInvalidConfig {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_CONFIG: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeNetwork, cause, "failed to fetch")

	if err.Code != ErrCodeNetwork {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNetwork)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	throttle := &RateLimitedError{StatusCode: 429}

	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidConfig, "test"),
			code:     ErrCodeInvalidConfig,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidConfig, "test"),
			code:     ErrCodeNotFound,
			expected: false,
		},
		{
			name:     "wrapped with fmt",
			err:      fmt.Errorf("context: %w", New(ErrCodeQuotaExhausted, "test")),
			code:     ErrCodeQuotaExhausted,
			expected: true,
		},
		{
			name:     "nested coded errors",
			err:      Wrap(ErrCodeQuotaExhausted, Wrap(ErrCodeRateLimited, throttle, "inner"), "outer"),
			code:     ErrCodeRateLimited,
			expected: true,
		},
		{
			name:     "bare rate limit error",
			err:      fmt.Errorf("fetch: %w", throttle),
			code:     ErrCodeRateLimited,
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("plain"),
			code:     ErrCodeInternal,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInternal,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeParseFailure, "x")); got != ErrCodeParseFailure {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeParseFailure)
	}
	if got := GetCode(&RateLimitedError{StatusCode: 403}); got != ErrCodeRateLimited {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeRateLimited)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeNotFound, "repo %s missing", "svc")); got != "repo svc missing" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestRateLimitedError(t *testing.T) {
	err := &RateLimitedError{StatusCode: 429}
	if err.Error() != "rate limited (status 429)" {
		t.Errorf("Error() = %q", err.Error())
	}

	reset := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err = &RateLimitedError{StatusCode: 403, ResetAt: reset}
	want := "rate limited (status 403): resets at 2024-05-01T12:00:00Z"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Code() != ErrCodeRateLimited {
		t.Errorf("Code() = %v", err.Code())
	}
}
