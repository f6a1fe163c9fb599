// Package retry wraps a single outbound call with timeout, bounded retries
// and exponential backoff with jitter. Providers never retry internally;
// centralizing retries here keeps attempt accounting in one place and keeps
// limits in configuration instead of constants.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// Policy parameterizes a controller. Values come from the resolved provider
// settings, never from literals.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64

	// Retryable classifies errors. A nil classifier treats every error as
	// terminal after the first attempt.
	Retryable func(error) bool
}

// ExhaustedError wraps the final error after the attempt budget is spent.
// Callers treat it as job-ending rather than silently swallowing it.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Controller executes operations under a policy.
type Controller struct {
	policy Policy
	logger arbor.ILogger
	// sleep is swappable for tests.
	sleep func(context.Context, time.Duration) error
}

// NewController creates a controller for the given policy.
func NewController(policy Policy, logger arbor.ILogger) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	return &Controller{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Execute runs op, retrying retryable failures with backoff until the policy
// budget is spent. Terminal failures return immediately. Once attempts are
// exhausted the final error is wrapped in *ExhaustedError.
func (c *Controller) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if c.policy.Retryable == nil || !c.policy.Retryable(lastErr) {
			return lastErr
		}

		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.delayFor(attempt)
		if c.logger != nil {
			c.logger.Debug().
				Err(lastErr).
				Int("attempt", attempt).
				Int("max_attempts", c.policy.MaxAttempts).
				Dur("delay", delay).
				Msg("Retryable call failed, backing off")
		}
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: c.policy.MaxAttempts, Err: lastErr}
}

// delayFor computes min(maxDelay, baseDelay * 2^(attempt-1)) with
// +/- jitterFraction applied.
func (c *Controller) delayFor(attempt int) time.Duration {
	delay := c.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.policy.MaxDelay {
			delay = c.policy.MaxDelay
			break
		}
	}
	if delay > c.policy.MaxDelay {
		delay = c.policy.MaxDelay
	}

	if c.policy.JitterFraction > 0 {
		jitter := 1 + c.policy.JitterFraction*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * jitter)
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
