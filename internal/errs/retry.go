package errs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the §7 retry layer: exponential backoff
// (base·2^attempt, capped at MaxDelay, with jitter) up to MaxRetries
// before surfacing the last error.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Retry re-issues op until it succeeds, returns a non-recoverable error, or
// exhausts MaxRetries. An *Error is retried according to its Kind's fixed
// recoverability table; any other error falls back to IsRecoverable's
// generic message-pattern match (§7: "timeout", "429", "503",
// "connection refused") before being wrapped as backoff.Permanent and
// surfaced immediately.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.BaseDelay
	eb.MaxInterval = policy.MaxDelay
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0 // bounded by MaxRetries, not wall-clock
	eb.RandomizationFactor = 0.25

	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxInt(policy.MaxRetries, 0))), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
