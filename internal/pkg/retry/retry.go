// Package retry runs operations with bounded exponential backoff, retrying
// only the failures a classifier marks as transient.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     4,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     4 * time.Second,
	}
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Do calls op until it succeeds, returns a non-transient error, or the
// attempt budget runs out. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, transient Classifier, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if transient == nil || !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("retrying operation",
				"operation", operation,
				"attempt", attempt,
				"delay", next,
				"error", err)
		}),
	)
}

// DoErr is Do for operations without a result.
func DoErr(ctx context.Context, p Policy, transient Classifier, operation string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, transient, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
