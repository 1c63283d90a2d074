package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		return nil
	}, fastRetry(3), nil)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_FailureThenSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fastRetry(3), nil)

	if err != nil {
		t.Errorf("Expected no error after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("persistent error")
	}, fastRetry(2), nil)

	if err == nil || err.Error() != "persistent error" {
		t.Errorf("Expected last error after max attempts, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("bad request")
	}, fastRetry(3), IsRetryableNetworkError)

	if err == nil {
		t.Error("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := &RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, func(context.Context) error {
			attempts++
			return errors.New("timeout")
		}, config, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || err.Error() != "timeout" {
			t.Errorf("Expected last error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestReconnect_WrapsFinalError(t *testing.T) {
	err := Reconnect(context.Background(), func(context.Context) error {
		return errors.New("dial failed")
	}, fastRetry(2))

	if err == nil || !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("Expected attempts in error, got %v", err)
	}
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"unavailable", errors.New("Unavailable"), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"upstream 503", errors.New("backend returned status 503"), true},
		{"wrapped retryable", NewRetryableError(errors.New("flaky")), true},
		{"other error", errors.New("other error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryableNetworkError(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{5, time.Second},
	}

	for _, tt := range tests {
		got := CalculateBackoff(tt.attempt, 100*time.Millisecond, time.Second, 2.0)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestNewRetryableError(t *testing.T) {
	originalErr := errors.New("original error")
	retryableErr := NewRetryableError(originalErr)

	if retryableErr.Error() != "original error" {
		t.Errorf("Expected error message 'original error', got %s", retryableErr.Error())
	}
	if !IsRetryable(retryableErr) {
		t.Error("Expected error to be retryable")
	}
	if IsRetryable(originalErr) {
		t.Error("Expected original error to not be retryable")
	}
	if NewRetryableError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}
