package nsstore

import (
	"context"
	"errors"
	"time"
)

// waiter bounds every backend operation with a single configured timeout and
// folds the distinct failure modes — timeout, transport fault, a wait cut
// short by the caller's context — into one *OpError I/O category. It never
// retries; retry policy, where one exists, belongs to the caller (the
// namespace token-collision loop is the only one in this module).
type waiter struct {
	timeout time.Duration
	hooks   Hooks
}

// await runs fn under the waiter's timeout. A timeout abandons the wait from
// the caller's perspective only: the backend operation may still complete
// later with a side effect the caller never observed, so a timeout must be
// treated as "unknown outcome", not "did not happen".
func await[T any](ctx context.Context, w waiter, op, key string, fn func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	v, err := fn(opCtx)
	if err == nil {
		return v, nil
	}

	var zero T
	if errors.Is(err, context.DeadlineExceeded) {
		w.hooks.OpTimeout(op, key)
		return zero, &OpError{Op: op, Key: key, Timeout: true, Err: err}
	}
	// caller cancellation and backend faults share the same category
	return zero, &OpError{Op: op, Key: key, Err: err}
}
