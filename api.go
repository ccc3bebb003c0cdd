package nsstore

import (
	"context"
	"time"

	"github.com/unkn0wn-root/nsstore/backend"
)

// Storage is the versioned, namespaced storage service over a flat cache
// backend. All operations are synchronous from the caller's perspective;
// every backend wait is bounded by the configured operation timeout.
//
// storageContext and key must be non-empty ASCII strings of any length;
// expiration is an absolute instant in unix milliseconds (0 = never expires);
// version values are the backend CAS tokens returned on read and are only
// meaningful for the entry they were read from.
//
// "Not found" outcomes (missing context, missing key) are reported as false
// or absent results, never as errors. A context that has never been written
// behaves as if all its keys are absent.
type Storage interface {
	// Capabilities describes the backend's size limits for client-side
	// validation.
	Capabilities() Capabilities

	// Create stores a new record. Returns created=false when an entry
	// already exists at (storageContext, key); the existing value is left
	// unchanged (first writer wins). The context's namespace is created
	// lazily on first use.
	Create(ctx context.Context, storageContext, key, value string, expiration int64) (created bool, err error)

	// Read returns the record and ok=true on hit. The record's Version is
	// the backend's current CAS token.
	Read(ctx context.Context, storageContext, key string) (rec Record, ok bool, err error)

	// ReadVersion probes whether the caller's copy at version is still
	// current. ok=true (with the record) only when the stored version equals
	// version; stale=true when a record exists under a different version.
	// This is a stale-read probe, not a conditional fetch: a stale probe does
	// not return the current record.
	ReadVersion(ctx context.Context, storageContext, key string, version uint64) (rec Record, ok bool, stale bool, err error)

	// Update overwrites an existing record. Returns updated=false when the
	// key (or the context's namespace) is absent; absent keys are never
	// created.
	Update(ctx context.Context, storageContext, key, value string, expiration int64) (updated bool, err error)

	// UpdateWithVersion overwrites the record only if its current version
	// equals version. On success the record is re-read to obtain the new
	// version; a third party can mutate the record between the conditioned
	// write and the re-read, so the returned version may itself already be
	// stale. Returns (0, false, nil) when the key or namespace is absent
	// (including deletion inside that window) and ErrVersionMismatch on
	// conflict.
	UpdateWithVersion(ctx context.Context, version uint64, storageContext, key, value string, expiration int64) (newVersion uint64, ok bool, err error)

	// UpdateExpiration rewrites only the entry's expiration, leaving the
	// value untouched. Returns updated=false when absent.
	UpdateExpiration(ctx context.Context, storageContext, key string, expiration int64) (updated bool, err error)

	// Delete removes the record unconditionally. Returns deleted=false when
	// absent.
	Delete(ctx context.Context, storageContext, key string) (deleted bool, err error)

	// DeleteWithVersion removes the record only if its current version
	// equals version. Returns deleted=false when absent and
	// ErrVersionMismatch on conflict.
	DeleteWithVersion(ctx context.Context, version uint64, storageContext, key string) (deleted bool, err error)

	// DeleteContext removes the context's namespace mappings (both
	// directions). Records under the namespace are not enumerated or
	// deleted; they become unreachable and only disappear via their own
	// TTLs. The two deletes are independent: on failure the other may have
	// completed, reported via DeleteContextError.
	DeleteContext(ctx context.Context, storageContext string) error

	// UpdateContextExpiration always fails with ErrUnsupported: the backend
	// has no group-TTL primitive over a simulated namespace.
	UpdateContextExpiration(ctx context.Context, storageContext string, expiration int64) error

	// Reap is a no-op; the backend's native per-key TTL already handles
	// expiry.
	Reap(ctx context.Context, storageContext string) error

	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// Options tune the behavior of the storage service.
// Only Backend and Timeout are required; others have sensible defaults.
type Options struct {
	// Required
	Backend backend.Conn
	Timeout time.Duration // per-operation backend wait; must be positive

	Logger       Logger       // if nil, NopLogger is used
	Hooks        Hooks        // if nil, NopHooks is used
	Capabilities Capabilities // zero fields take defaults (250 / 1M)
	Tokens       TokenSource  // nil => crypto/rand tokens
	// NamespaceAttempts bounds the token-allocation loop: candidate tokens
	// tried before namespace creation gives up. 0 => 8.
	NamespaceAttempts int
}

func New(opts Options) (Storage, error) {
	return newStorage(opts)
}
