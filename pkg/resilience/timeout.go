package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
)

// WithTimeout returns when fn does or when timeout elapses, whichever is
// first. fn sees a context whose cause is an apperrors.ErrTimeout and is
// expected to return soon after; it is not waited for.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	cause := fmt.Errorf("%s: %w after %v", name, apperrors.ErrTimeout, timeout)
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, cause)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if err := context.Cause(ctx); err == cause {
			return err
		}
		return fmt.Errorf("%s: %w", name, context.Cause(ctx))
	}
}
