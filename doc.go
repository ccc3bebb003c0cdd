// Package nsstore implements a versioned, namespaced key-value storage
// service over a flat, size-limited cache backend (memcached-style: bounded
// key length, optional per-entry TTL, compare-and-swap tokens). Namespaces
// are simulated: every context is lazily bound to a unique opaque token via
// insert-if-absent, and record keys are qualified with that token.
//
// Components:
//   - backend.Conn: the flat cache client (memory and Redis included).
//   - codec.Codec[V]: (de)serializes application values for the Serialized
//     helper forms.
//   - Descriptor[T]: extracts (context, key, value, expiration) from an
//     application value for the Object helper forms.
//
// Keys:
//
//	<context>                - reverse namespace mapping (context -> token)
//	<token>                  - forward namespace mapping (token -> context)
//	<token>:<key>            - record entries
//
// Composite keys over 250 bytes are replaced by their SHA-512 hex digest, so
// contexts and keys may be arbitrarily long. Record versions are the
// backend's CAS tokens: read a record, then pass its Version to
// UpdateWithVersion/DeleteWithVersion for optimistic concurrency. The module
// takes no locks of its own; insert-if-absent and CAS are the only
// serialization primitives used.
package nsstore
