package nsstore

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionMismatch is returned by UpdateWithVersion and
	// DeleteWithVersion when the backend holds a different version than the
	// caller expected. Callers should re-read and retry at their own level;
	// nsstore never retries conditioned writes.
	ErrVersionMismatch = errors.New("nsstore: version mismatch")

	// ErrUnsupported is returned by operations the flat backend cannot
	// express, such as setting an expiration on an entire context.
	ErrUnsupported = errors.New("nsstore: operation not supported")

	// ErrContextExists is returned when a concurrent caller won the
	// namespace-creation race for the same context. The loser must not adopt
	// the winner's token silently; resolve again to pick it up.
	ErrContextExists = errors.New("nsstore: context already exists")
)

// OpError wraps any backend failure — transport fault, timeout, or a wait cut
// short by the caller's context — into a single I/O error category.
type OpError struct {
	Op      string
	Key     string
	Timeout bool
	Err     error
}

func (e *OpError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("nsstore: %s %q: operation did not complete in time: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("nsstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// DeleteContextError reports a partial DeleteContext: the forward (namespace
// token) and reverse (context) mapping deletes are independent, so one can
// fail while the other succeeds. There is no rollback; the surviving mapping
// is left in place.
type DeleteContextError struct {
	Context    string
	ForwardErr error // delete of the namespace token entry
	ReverseErr error // delete of the context entry
}

func (e *DeleteContextError) Error() string {
	switch {
	case e.ForwardErr != nil && e.ReverseErr != nil:
		return fmt.Sprintf("delete context %q failed: namespace and context deletes failed: namespace=%v; context=%v",
			e.Context, e.ForwardErr, e.ReverseErr)
	case e.ForwardErr != nil:
		return fmt.Sprintf("delete context %q: namespace delete failed: %v", e.Context, e.ForwardErr)
	case e.ReverseErr != nil:
		return fmt.Sprintf("delete context %q: context delete failed: %v", e.Context, e.ReverseErr)
	default:
		return fmt.Sprintf("delete context %q: unknown error", e.Context)
	}
}

func (e *DeleteContextError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.ForwardErr != nil {
		errs = append(errs, e.ForwardErr)
	}
	if e.ReverseErr != nil {
		errs = append(errs, e.ReverseErr)
	}
	return errs
}
