package resilience

import (
	"context"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// WithTimeout runs fn under a deadline. A run that outlives the deadline
// fails with ErrTimeout; fn keeps its context and should return promptly
// once it is cancelled. Cancellation of ctx itself is returned unchanged.
// A non-positive timeout runs fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && timeoutCtx.Err() != nil {
			return apperrors.E(op, apperrors.ErrTimeout, "exceeded %v", timeout)
		}
		return err
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return apperrors.E(op, apperrors.ErrTimeout, "exceeded %v", timeout)
	}
}
