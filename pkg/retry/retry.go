// Package retry runs an operation through a bounded exponential backoff
// schedule with pluggable error classification and sleeping.
package retry

import (
	"context"
	"time"

	"biobyia-go/internal/model"
)

// Classifier reports whether an error is worth another attempt. Errors it
// rejects propagate to the caller immediately.
type Classifier func(error) bool

// SleepFunc blocks for the given delay or until the context is cancelled,
// in which case it returns the context error. Tests inject their own to run
// the full schedule without real waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds the schedule: up to MaxAttempts calls, waiting BaseDelay
// after the first failure and doubling up to MaxDelay between the rest.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// OnRetry is called before each wait with the attempt that just failed,
// the upcoming delay and the error.
type OnRetry func(attempt int, delay time.Duration, err error)

// Retrier executes operations under a fixed Policy.
type Retrier struct {
	policy    Policy
	retryable Classifier
	sleep     SleepFunc
	onRetry   OnRetry
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithClassifier sets the retryable-error classifier.
func WithClassifier(c Classifier) Option {
	return func(r *Retrier) { r.retryable = c }
}

// WithSleep replaces the real sleep, used by tests.
func WithSleep(s SleepFunc) Option {
	return func(r *Retrier) { r.sleep = s }
}

// WithOnRetry sets a callback invoked before each backoff wait.
func WithOnRetry(cb OnRetry) Option {
	return func(r *Retrier) { r.onRetry = cb }
}

// New creates a Retrier. Zero policy fields fall back to 3 attempts,
// 1s base delay and 30s cap; by default every error is retryable.
func New(policy Policy, opts ...Option) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	r := &Retrier{
		policy:    policy,
		retryable: func(error) bool { return true },
		sleep:     defaultSleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// context is cancelled during a wait, or the attempt budget is spent. In
// the last case the returned error is a *model.TransientError wrapping the
// final cause. op names the operation for error messages.
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !r.retryable(err) {
			return err
		}
		if attempt >= r.policy.MaxAttempts {
			return &model.TransientError{Op: op, Attempts: attempt, Err: err}
		}

		delay := r.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, delay, err)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			// Cancellation during the wait wins over the provider error.
			return serr
		}
	}
}

// Delay returns the wait after the given 1-based failed attempt:
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (r *Retrier) Delay(attempt int) time.Duration {
	d := r.policy.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.policy.MaxDelay {
			return r.policy.MaxDelay
		}
	}
	if d > r.policy.MaxDelay {
		return r.policy.MaxDelay
	}
	return d
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
