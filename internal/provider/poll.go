package provider

import (
	"context"
	"time"

	"artbatch/internal/errors"
)

const defaultPollInterval = 2 * time.Second

// pollUntil runs check at the given interval until it reports done, failing
// with a retryable timeout error once the budget elapses. Errors from check
// are treated as transient page states (elements mid-rerender, navigation in
// flight) and only surface as the timeout's cause; context cancellation
// fails immediately.
func pollUntil(ctx context.Context, op string, timeout, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	var lastErr error

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := check(ctx)
		if err != nil {
			lastErr = err
		} else if done {
			return nil
		}

		wait(ctx, interval)
	}

	timeoutErr := errors.NewTimeoutError(op, timeout)
	if lastErr != nil {
		return timeoutErr.WithCause(lastErr)
	}
	return timeoutErr
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
