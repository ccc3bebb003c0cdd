package nsstore

const (
	// DefaultMaxKeyLength is the backend key length limit in bytes. Logical
	// context/key composites longer than this are hashed transparently, so
	// the limit does not constrain callers.
	DefaultMaxKeyLength = 250

	// DefaultMaxValueLength matches memcached's default 1M slab size.
	DefaultMaxValueLength = 1 << 20
)

// Capabilities describes backend storage limits. Callers can use it for
// client-side validation before issuing writes. Override MaxValueLength when
// the backend is configured with a non-default slab/value size.
type Capabilities struct {
	MaxKeyLength   int
	MaxValueLength int
}
