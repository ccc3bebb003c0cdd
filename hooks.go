package nsstore

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The storage service calls them on hot paths.
type Hooks interface {
	// A namespace was created for a context. attempts counts token
	// candidates tried (1 = no collision).
	NamespaceCreated(context, namespace string, attempts int)

	// A candidate token was already claimed and the allocation loop retried.
	TokenCollision(token string)

	// The reverse-mapping insert lost to a concurrent creator for the same
	// context. The forward claim is orphaned.
	NamespaceRaceLost(context string)

	// A conditioned write or delete hit a CAS conflict.
	// op ∈ {"update_version", "delete_version"}
	VersionConflict(storageKey, op string)

	// A backend wait was abandoned at the operation timeout.
	OpTimeout(op, storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) NamespaceCreated(string, string, int) {}
func (NopHooks) TokenCollision(string)                {}
func (NopHooks) NamespaceRaceLost(string)             {}
func (NopHooks) VersionConflict(string, string)       {}
func (NopHooks) OpTimeout(string, string)             {}
