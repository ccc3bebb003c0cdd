package nsstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/unkn0wn-root/nsstore/backend"
	"github.com/unkn0wn-root/nsstore/internal/keys"
)

// TokenSource produces candidate namespace tokens. Tokens must be safe for
// use as backend keys as-is (short ASCII). Uniqueness is not required — the
// allocation loop detects collisions via the backend's add — but a source
// that repeats often will exhaust the attempt budget.
type TokenSource interface {
	Token() string
}

// randTokens draws 8 random bytes per token (16 hex chars).
type randTokens struct{}

func (randTokens) Token() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("nsstore: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// directory maps logical context names to namespace tokens, creating each
// mapping exactly once under concurrent callers.
//
// Two entries exist per context: the forward mapping stored at the token
// itself (token -> context, making the token a self-describing backend entry
// that can never be claimed twice) and the reverse mapping stored at the
// context's codec key (context -> token, the one lookups use). Both are
// written with add, never overwritten, so concurrent first-writers cannot
// corrupt each other: exactly one wins the reverse-mapping race and the
// losers fail with ErrContextExists.
type directory struct {
	conn     backend.Conn
	w        waiter
	log      Logger
	hooks    Hooks
	tokens   TokenSource
	attempts int
}

type getResult struct {
	value []byte
	token uint64
	ok    bool
}

// Lookup returns the namespace token bound to storageContext, if any.
func (d *directory) Lookup(ctx context.Context, storageContext string) (string, bool, error) {
	k := keys.Key(storageContext)
	res, err := await(ctx, d.w, "get", k, func(c context.Context) (getResult, error) {
		v, tok, ok, err := d.conn.Get(c, k)
		return getResult{value: v, token: tok, ok: ok}, err
	})
	if err != nil {
		return "", false, err
	}
	if !res.ok {
		return "", false, nil
	}
	return string(res.value), true, nil
}

// CreateIfAbsent allocates a namespace for storageContext. At most one token
// is ever bound to a context: when the reverse-mapping add loses to a
// concurrent creator, the call fails with ErrContextExists rather than
// silently adopting the winner's token. The forward claim is orphaned in
// that case — tokens are single-use and cheap.
func (d *directory) CreateIfAbsent(ctx context.Context, storageContext string) (string, error) {
	var namespace string
	attempt := 0
	for namespace == "" {
		attempt++
		tok := d.tokens.Token()
		stored, err := await(ctx, d.w, "add", tok, func(c context.Context) (bool, error) {
			return d.conn.Add(c, tok, []byte(storageContext), 0)
		})
		if err != nil {
			// IO failures propagate; only token collisions are retried
			return "", err
		}
		if stored {
			namespace = tok
			break
		}
		d.hooks.TokenCollision(tok)
		if attempt >= d.attempts {
			return "", fmt.Errorf("nsstore: namespace allocation for context gave up after %d token collisions", attempt)
		}
	}

	rk := keys.Key(storageContext)
	stored, err := await(ctx, d.w, "add", rk, func(c context.Context) (bool, error) {
		return d.conn.Add(c, rk, []byte(namespace), 0)
	})
	if err != nil {
		return "", err
	}
	if !stored {
		d.hooks.NamespaceRaceLost(storageContext)
		d.log.Warn("lost namespace creation race", Fields{"context": storageContext})
		return "", fmt.Errorf("%w: %s", ErrContextExists, storageContext)
	}
	d.hooks.NamespaceCreated(storageContext, namespace, attempt)
	d.log.Debug("created namespace", Fields{"context": storageContext, "namespace": namespace, "attempts": attempt})
	return namespace, nil
}

// Resolve is Lookup with lazy creation. Concurrent resolves for the same new
// context race at CreateIfAbsent; losers surface ErrContextExists.
func (d *directory) Resolve(ctx context.Context, storageContext string) (string, error) {
	ns, ok, err := d.Lookup(ctx, storageContext)
	if err != nil {
		return "", err
	}
	if ok {
		return ns, nil
	}
	return d.CreateIfAbsent(ctx, storageContext)
}

// DeleteMappings removes both namespace mapping entries. Both deletes are
// always issued; a failure on one does not roll back the other.
func (d *directory) DeleteMappings(ctx context.Context, storageContext, namespace string) (fwdErr, revErr error) {
	_, fwdErr = await(ctx, d.w, "delete", namespace, func(c context.Context) (bool, error) {
		return d.conn.Delete(c, namespace)
	})
	rk := keys.Key(storageContext)
	_, revErr = await(ctx, d.w, "delete", rk, func(c context.Context) (bool, error) {
		return d.conn.Delete(c, rk)
	})
	return fwdErr, revErr
}
