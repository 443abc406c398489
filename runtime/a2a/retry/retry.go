// Package retry wraps an a2a.Caller with exponential backoff so transient
// delegation failures (network timeouts, overloaded specialists) are retried
// before surfacing to the host agent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"goa.design/horizon/runtime/a2a"
	"goa.design/horizon/runtime/a2a/types"
)

type (
	// Config configures retry behavior.
	Config struct {
		// MaxAttempts is the maximum number of attempts including the
		// initial one. Zero or one means no retries.
		MaxAttempts int
		// InitialBackoff is the delay before the first retry.
		InitialBackoff time.Duration
		// MaxBackoff caps the delay between retries.
		MaxBackoff time.Duration
		// Multiplier grows the backoff after each retry.
		Multiplier float64
		// Jitter adds randomness to the backoff, as a fraction of the
		// computed delay.
		Jitter float64
	}

	// Caller retries another caller's SendTask on retryable failures.
	Caller struct {
		next a2a.Caller
		cfg  Config
	}

	// ExhaustedError is returned when all attempts failed.
	ExhaustedError struct {
		// Attempts is the number of attempts made.
		Attempts int
		// LastError is the error from the last attempt.
		LastError error
	}
)

// DefaultConfig returns a sensible default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastError)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// IsRetryable reports whether an error may succeed on retry: network
// timeouts, deadline expiry, and overloaded-server protocol errors qualify;
// cancellation and task-domain errors do not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var rpcErr *a2a.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == a2a.CodeServerOverloaded
	}
	return false
}

// Wrap decorates next with retries.
func Wrap(next a2a.Caller, cfg Config) *Caller {
	return &Caller{next: next, cfg: cfg}
}

var _ a2a.Caller = (*Caller)(nil)

// SendTask implements a2a.Caller.
func (c *Caller) SendTask(ctx context.Context, p *types.SendTaskPayload) (*types.Task, error) {
	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
		task, err := c.next.SendTask(ctx, p)
		if err == nil {
			return task, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, &ExhaustedError{Attempts: attempts, LastError: lastErr}
}

// backoff computes the delay before the given retry attempt (1-based).
func (c *Caller) backoff(attempt int) time.Duration {
	d := float64(c.cfg.InitialBackoff) * math.Pow(c.cfg.Multiplier, float64(attempt-1))
	if max := float64(c.cfg.MaxBackoff); c.cfg.MaxBackoff > 0 && d > max {
		d = max
	}
	if c.cfg.Jitter > 0 {
		d += d * c.cfg.Jitter * rand.Float64()
	}
	return time.Duration(d)
}
