package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts       int           // Maximum number of attempts, including the first
	InitialBackoff    time.Duration // Wait before the second attempt
	MaxBackoff        time.Duration // Upper bound for any single wait
	BackoffMultiplier float64       // Growth factor between waits
	Jitter            bool          // Add up to 25% random jitter to each wait
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// ReconnectConfig returns the policy used for long lived streaming connections.
func ReconnectConfig(maxAttempts int, backoff time.Duration) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    backoff,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// IsRetryableError decides whether an error deserves another attempt
type IsRetryableError func(error) bool

// Retry runs fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done.
func Retry(ctx context.Context, fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		wait := CalculateBackoff(attempt, config.InitialBackoff, config.MaxBackoff, config.BackoffMultiplier)
		if config.Jitter && wait > 0 {
			wait += time.Duration(rand.Int63n(int64(wait)/4 + 1))
			if wait > config.MaxBackoff {
				wait = config.MaxBackoff
			}
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(wait):
		}
	}

	return lastErr
}

// Reconnect retries fn with the reconnect policy and reports the final failure
// with the number of attempts made.
func Reconnect(ctx context.Context, fn RetryableFunc, config *RetryConfig) error {
	if config == nil {
		config = ReconnectConfig(5, time.Second)
	}
	if err := Retry(ctx, fn, config, nil); err != nil {
		return fmt.Errorf("failed to reconnect after %d attempts: %w", config.MaxAttempts, err)
	}
	return nil
}

// CalculateBackoff calculates the backoff duration for a given attempt
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

var retryableMessages = []string{
	// connection
	"connection refused",
	"connection reset",
	"connection closed",
	"transport is closing",
	"unavailable",
	"network is unreachable",
	"no route to host",
	// timeouts
	"deadline exceeded",
	"timeout",
	// throttling
	"resource exhausted",
	"too many connections",
	"rate limit",
	"status 429",
	"status 502",
	"status 503",
}

// IsRetryableNetworkError checks if an error is a retryable network error
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if IsRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// RetryableError wraps an error to indicate it's retryable
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error is a RetryableError
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
