// internal/browser/wait/wait.go
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultInterval is the polling interval used when Options.Interval is unset.
const DefaultInterval = 250 * time.Millisecond

// Options bounds a single wait.
type Options struct {
	// Timeout is the total budget. A non-positive timeout evaluates the
	// condition exactly once.
	Timeout time.Duration
	// Interval is the pause between evaluations.
	Interval time.Duration
	// Message describes what was awaited; it becomes the TimeoutError message.
	Message string
}

// Condition is evaluated until it reports ok. An error from the condition is
// treated as "not yet" and retried, unless it was wrapped with Permanent.
type Condition[T any] func(ctx context.Context) (value T, ok bool, err error)

var errNotYet = errors.New("condition not satisfied")

// Until evaluates cond every interval until it is satisfied, it returns a
// permanent error, ctx is cancelled, or the timeout elapses. The condition is
// always evaluated at least once. On timeout it returns a *TimeoutError that
// records the last observed value and error.
func Until[T any](ctx context.Context, opts Options, cond Condition[T]) (T, error) {
	var zero T
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	start := time.Now()

	waitCtx := ctx
	cancel := func() {}
	if opts.Timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	var (
		result   T
		last     T
		lastErr  error
		permErr  error
		attempts int
	)
	operation := func() error {
		attempts++
		v, ok, err := cond(waitCtx)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				permErr = perm.err
				return backoff.Permanent(perm.err)
			}
			last, lastErr = v, err
			return err
		}
		if ok {
			result = v
			return nil
		}
		last, lastErr = v, nil
		return errNotYet
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if opts.Timeout > 0 {
		policy = backoff.NewConstantBackOff(opts.Interval)
	}
	err := backoff.Retry(operation, backoff.WithContext(policy, waitCtx))
	if err == nil {
		return result, nil
	}

	if permErr != nil {
		return zero, permErr
	}
	// The caller's own cancellation is not a timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	return zero, &TimeoutError{
		Message:  opts.Message,
		Timeout:  opts.Timeout,
		Elapsed:  time.Since(start),
		Attempts: attempts,
		Last:     last,
		LastErr:  lastErr,
	}
}

// True waits for a boolean condition.
func True(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	_, err := Until(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Sleep pauses for d or until ctx is done. It is reserved for fixed pauses
// the harness documents, such as the player settle delay.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
