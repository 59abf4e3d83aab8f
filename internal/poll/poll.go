// Package poll implements the bounded create-then-poll contract shared by
// the async capability adapters: fixed interval, bounded attempt count,
// immediate propagation of terminal failures, retry of transient errors
// within the attempt budget.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
)

const (
	// Interval between poll attempts
	Interval = 2 * time.Second
	// MaxAttempts bounds the loop (~60s ceiling at the default interval)
	MaxAttempts = 30
)

// Func performs one poll attempt. done reports task completion. A returned
// *domain.AdapterError is terminal and propagates immediately; any other
// error is treated as transient and retried within the budget.
type Func func(ctx context.Context) (done bool, err error)

// Until polls fn every interval, at most attempts times. Exhausting the
// budget while the task is still pending yields a timeout failure.
func Until(ctx context.Context, adapter string, interval time.Duration, attempts int, fn Func) error {
	var lastErr error

	for i := 0; i < attempts; i++ {
		done, err := fn(ctx)
		if err != nil {
			var ae *domain.AdapterError
			if errors.As(err, &ae) {
				return err
			}
			lastErr = err
		} else if done {
			return nil
		}

		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.NewAdapterError(adapter, domain.FailureTimeout, "polling cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	return domain.NewAdapterError(adapter, domain.FailureTimeout, "task did not complete within the attempt budget", lastErr)
}
