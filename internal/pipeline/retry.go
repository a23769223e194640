package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ------------------- Stage Retry -------------------

// RetryPolicy controls how often and how fast a failed stage is retried.
// Backoff is exponential: InitialDelay doubled per attempt, capped at
// MaxDelay. Only failures classified retryable by IsRetryable are retried.
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy mirrors the ingestion defaults: 1s initial delay,
// doubling, 30s cap.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Run executes one stage attempt-by-attempt. Each attempt gets its own
// deadline when timeout > 0; an attempt that hits it counts as a Timeout
// failure and consumes one retry. The returned count is the number of
// retries performed (not total attempts). Cancellation of the parent
// context stops retrying immediately.
func (p RetryPolicy) Run(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) error) (int, error) {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 2.0
	}

	for attempt := 0; ; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ErrCancelled(stage)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout(stage)
		}
		if !IsRetryable(err) {
			return attempt, err
		}
		if attempt >= p.MaxRetries {
			fmt.Printf("❌ Stage %s failed permanently after %d retries: %v\n", stage, attempt, err)
			return attempt, err
		}

		fmt.Printf("🔄 Stage %s attempt %d failed (%v), retrying in %v\n", stage, attempt+1, err, delay)
		select {
		case <-ctx.Done():
			return attempt, ErrCancelled(stage)
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * mult)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
