package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
)

// Poll calls condition every interval until it returns true. It fails once
// timeout elapses or ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for condition (threshold: %v)", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// EvalUntil evaluates expression on p every interval until predicate
// accepts the decoded value, and returns that value. Evaluation errors
// count as a miss; the last one is reported on timeout.
func EvalUntil[T any](ctx context.Context, p browser.Page, expression string, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	var (
		last    T
		lastErr error
	)
	err := Poll(ctx, func() bool {
		var v T
		if lastErr = p.Evaluate(ctx, expression, &v); lastErr != nil {
			return false
		}
		last = v
		return predicate(v)
	}, timeout, interval)
	if err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%w: last evaluation of %q: %v", err, expression, lastErr)
		} else {
			err = fmt.Errorf("%w: %q last gave %v", err, expression, last)
		}
		var zero T
		return zero, err
	}
	return last, nil
}
