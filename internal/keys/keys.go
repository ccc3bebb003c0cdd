// Package keys builds backend-safe cache keys from logical key parts.
package keys

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// MaxLength is the backend's key length limit in bytes. Composite keys longer
// than this are replaced by a fixed-length digest.
const MaxLength = 250

// Key joins parts with ':' into a single backend key. When the composite
// exceeds MaxLength bytes it is hashed with SHA-512 and hex encoded, yielding
// a 128-character key. Both branches are deterministic, so repeated lookups
// with the same parts always address the same backend entry.
//
// Parts are assumed to be ASCII; byte length and character length are treated
// as equal.
func Key(parts ...string) string {
	k := strings.Join(parts, ":")
	if len(k) > MaxLength {
		sum := sha512.Sum512([]byte(k))
		return hex.EncodeToString(sum[:])
	}
	return k
}
