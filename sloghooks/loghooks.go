// Package sloghooks is an nsstore.Hooks sink that logs through log/slog.
//
// Storage keys routinely hold session or credential identifiers, so keys are
// redacted before logging (SHA-256 prefix by default). High-frequency events
// can be sampled to avoid floods during a backend outage.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/nsstore"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	VersionConflictEvery uint64
	OpTimeoutEvery       uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	timeoutCtr  atomic.Uint64
}

var _ nsstore.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) NamespaceCreated(context, namespace string, attempts int) {
	if h.l == nil {
		return
	}
	h.l.Info("nsstore: namespace created",
		slog.String("context", context),
		slog.String("namespace", namespace),
		slog.Int("attempts", attempts))
}

func (h *Hooks) TokenCollision(token string) {
	if h.l == nil {
		return
	}
	h.l.Warn("nsstore: namespace token collision", slog.String("token", token))
}

func (h *Hooks) NamespaceRaceLost(context string) {
	if h.l == nil {
		return
	}
	h.l.Warn("nsstore: lost namespace creation race", slog.String("context", context))
}

func (h *Hooks) VersionConflict(storageKey, op string) {
	if h.l == nil || !sample(h.opts.VersionConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("nsstore: version conflict",
		slog.String("key", h.redact(storageKey)),
		slog.String("op", op))
}

func (h *Hooks) OpTimeout(op, storageKey string) {
	if h.l == nil || !sample(h.opts.OpTimeoutEvery, &h.timeoutCtr) {
		return
	}
	h.l.Warn("nsstore: backend operation timed out",
		slog.String("op", op),
		slog.String("key", h.redact(storageKey)))
}
