package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds the attempts, backoff schedule, and per-attempt deadline
// for venue calls.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Factor         int
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy matches the configured defaults: 5 attempts, 500ms base,
// doubling, capped at 5s, each attempt cut off after 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		BaseDelay:      500 * time.Millisecond,
		Factor:         2,
		MaxDelay:       5 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// delayFor returns the backoff delay before the given retry, non-decreasing
// up to the cap. attempt is zero-based.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= time.Duration(p.Factor)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs op until it succeeds, returns a non-transient error, or the
// attempt budget is exhausted. Only errors marked transient are retried;
// terminal errors propagate immediately.
func Retry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := policy.delayFor(attempt - 1)
			logger.Warn("Venue call failed, retrying...",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = policy.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}

// attempt runs one venue call under the per-attempt deadline. A venue that
// accepts the connection and never answers must not wedge the alert; the
// expired attempt counts as transient so the remaining budget can retry it.
func (p RetryPolicy) attempt(ctx context.Context, op func(context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !IsTransient(err) {
		return Transient(fmt.Errorf("venue call exceeded attempt timeout %s: %w", p.AttemptTimeout, err))
	}
	return err
}
