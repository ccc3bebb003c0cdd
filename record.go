package nsstore

// Record is a stored entry addressed by (context, key).
type Record struct {
	// Value is the stored string.
	Value string

	// Expiration is the absolute expiration instant in unix milliseconds;
	// 0 means the record never expires.
	Expiration int64

	// Version is the backend's CAS token at the time the record was read.
	// It is opaque and only valid for a conditioned write or delete against
	// the same entry.
	Version uint64
}

// expirationSeconds converts a millisecond expiration instant to the
// backend's native second precision. 0 stays 0 (no expiration).
func expirationSeconds(millis int64) int64 {
	return millis / 1000
}

// Descriptor extracts storage coordinates from an application value,
// replacing runtime introspection with four explicit accessors. Implement it
// once per stored type and use the Object helpers.
type Descriptor[T any] interface {
	// Context returns the logical grouping name for v.
	Context(v T) string
	// Key returns the record key for v.
	Key(v T) string
	// Value renders v as the stored string.
	Value(v T) (string, error)
	// Expiration returns the absolute expiration instant in unix
	// milliseconds, 0 for none.
	Expiration(v T) int64
}
