// Package backend defines the flat cache client abstraction used by nsstore.
//
// A Conn models a memcached-style store: a flat keyspace with a bounded key
// length, optional per-entry expiration, and a compare-and-swap token that
// changes on every successful write. nsstore builds namespaces, long keys and
// record versioning entirely out of these primitives; it never requires
// enumeration, transactions or server-side grouping.
//
// Implementations MUST be safe for concurrent use by many goroutines sharing
// a single Conn, and MUST be byte-for-byte transparent: Get must return
// exactly the []byte previously written for a key.
package backend

import "context"

// CASOutcome is the result of a token-conditioned write or delete.
type CASOutcome int

const (
	// CASStored means the conditioned operation was applied.
	CASStored CASOutcome = iota
	// CASConflict means an entry exists but its token differs from the
	// caller's. The entry is unchanged.
	CASConflict
	// CASNotFound means no entry exists at the key.
	CASNotFound
)

// Conn is a client connection (or pool) to the flat cache.
//
// Expirations are absolute unix seconds; 0 means no expiration. Keys must
// already satisfy the backend's key rules — callers are expected to run them
// through the key codec first.
type Conn interface {
	// Get returns the entry and its current CAS token.
	// (nil, 0, false, nil) on miss; err only for IO/remote failures.
	Get(ctx context.Context, key string) (value []byte, token uint64, ok bool, err error)

	// Add stores the entry only if the key is currently absent.
	// Returns stored=false (no error) when an entry already exists.
	Add(ctx context.Context, key string, value []byte, expiration int64) (stored bool, err error)

	// Replace stores the entry only if the key currently exists.
	// Returns stored=false (no error) when the key is absent.
	Replace(ctx context.Context, key string, value []byte, expiration int64) (stored bool, err error)

	// CompareAndSwap stores the entry only if the current CAS token equals
	// token.
	CompareAndSwap(ctx context.Context, key string, value []byte, expiration int64, token uint64) (CASOutcome, error)

	// Touch updates the expiration without rewriting the value.
	// Returns ok=false when the key is absent.
	Touch(ctx context.Context, key string, expiration int64) (ok bool, err error)

	// Delete removes the entry unconditionally.
	// Returns deleted=false when the key was absent.
	Delete(ctx context.Context, key string) (deleted bool, err error)

	// DeleteWithToken removes the entry only if the current CAS token equals
	// token.
	DeleteWithToken(ctx context.Context, key string, token uint64) (CASOutcome, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}
