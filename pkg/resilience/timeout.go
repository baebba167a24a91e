package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPanic wraps a panic recovered inside WithTimeout.
var ErrPanic = errors.New("panic recovered")

// WithTimeout runs fn with a context cancelled after timeout. On expiry it
// returns an error wrapping context.DeadlineExceeded without waiting for fn;
// fn should watch its context. A panic in fn is returned as ErrPanic.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%s: %w: %v", name, ErrPanic, r)
			}
		}()
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}
