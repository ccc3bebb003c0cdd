package nsstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/nsstore/backend"
	"github.com/unkn0wn-root/nsstore/backend/memory"
	"github.com/unkn0wn-root/nsstore/internal/keys"
)

// seqTokens hands out scripted namespace tokens, cycling when exhausted.
type seqTokens struct {
	toks []string
	i    int
}

func (s *seqTokens) Token() string {
	t := s.toks[s.i%len(s.toks)]
	s.i++
	return t
}

type recHooks struct {
	mu         sync.Mutex
	created    int
	collisions []string
	raceLost   []string
	conflicts  []string
	timeouts   []string
}

func (h *recHooks) NamespaceCreated(string, string, int) {
	h.mu.Lock()
	h.created++
	h.mu.Unlock()
}

func (h *recHooks) TokenCollision(tok string) {
	h.mu.Lock()
	h.collisions = append(h.collisions, tok)
	h.mu.Unlock()
}

func (h *recHooks) NamespaceRaceLost(c string) {
	h.mu.Lock()
	h.raceLost = append(h.raceLost, c)
	h.mu.Unlock()
}

func (h *recHooks) VersionConflict(k, op string) {
	h.mu.Lock()
	h.conflicts = append(h.conflicts, op)
	h.mu.Unlock()
}

func (h *recHooks) OpTimeout(op, k string) {
	h.mu.Lock()
	h.timeouts = append(h.timeouts, op)
	h.mu.Unlock()
}

func newTestStore(t *testing.T, conn backend.Conn, mod func(*Options)) Storage {
	t.Helper()
	opts := Options{
		Backend: conn,
		Timeout: 2 * time.Second,
	}
	if mod != nil {
		mod(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Timeout: time.Second}); err == nil {
		t.Fatalf("New without backend succeeded")
	}
	if _, err := New(Options{Backend: memory.New(0)}); err == nil {
		t.Fatalf("New without timeout succeeded")
	}
}

// TestCreateReadFlow verifies create-then-read, version population, and
// first-writer-wins create semantics.
func TestCreateReadFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	created, err := s.Create(ctx, "session", "abc", "v1", 0)
	if err != nil || !created {
		t.Fatalf("Create: created=%v err=%v", created, err)
	}

	rec, ok, err := s.Read(ctx, "session", "abc")
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if rec.Value != "v1" || rec.Version == 0 || rec.Expiration != 0 {
		t.Fatalf("Read: rec=%+v", rec)
	}

	// second create loses; existing value untouched
	created, err = s.Create(ctx, "session", "abc", "other", 0)
	if err != nil || created {
		t.Fatalf("second Create: created=%v err=%v", created, err)
	}
	rec2, _, _ := s.Read(ctx, "session", "abc")
	if rec2.Value != "v1" {
		t.Fatalf("losing create overwrote value: %q", rec2.Value)
	}
}

func TestReadMissingContextAndKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	// context never written: behaves as if all keys are absent, no error
	if _, ok, err := s.Read(ctx, "never-written", "k"); ok || err != nil {
		t.Fatalf("Read on missing context: ok=%v err=%v", ok, err)
	}

	if _, err := s.Create(ctx, "ctx", "k", "v", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok, err := s.Read(ctx, "ctx", "other"); ok || err != nil {
		t.Fatalf("Read on missing key: ok=%v err=%v", ok, err)
	}
}

func TestUpdateAbsentDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	// absent namespace
	updated, err := s.Update(ctx, "ctx", "k", "v", 0)
	if err != nil || updated {
		t.Fatalf("Update on missing context: updated=%v err=%v", updated, err)
	}

	if _, err := s.Create(ctx, "ctx", "present", "v", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// namespace exists, key absent
	updated, err = s.Update(ctx, "ctx", "k", "v", 0)
	if err != nil || updated {
		t.Fatalf("Update on missing key: updated=%v err=%v", updated, err)
	}
	if _, ok, _ := s.Read(ctx, "ctx", "k"); ok {
		t.Fatalf("Update created a missing key")
	}
}

func TestUpdateExistingChangesVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	_, _ = s.Create(ctx, "ctx", "k", "v1", 0)
	before, _, _ := s.Read(ctx, "ctx", "k")

	updated, err := s.Update(ctx, "ctx", "k", "v2", 0)
	if err != nil || !updated {
		t.Fatalf("Update: updated=%v err=%v", updated, err)
	}
	after, _, _ := s.Read(ctx, "ctx", "k")
	if after.Value != "v2" || after.Version == before.Version {
		t.Fatalf("after Update: %+v (before version %d)", after, before.Version)
	}
}

// TestUpdateWithVersionFlow runs the canonical optimistic-concurrency
// scenario: stale writers are rejected, winners get a fresh version.
func TestUpdateWithVersionFlow(t *testing.T) {
	ctx := context.Background()
	hooks := &recHooks{}
	s := newTestStore(t, memory.New(0), func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)

	if _, err := s.Create(ctx, "session", "abc", "v1", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, _, _ := s.Read(ctx, "session", "abc")
	v1 := rec.Version

	v2, ok, err := s.UpdateWithVersion(ctx, v1, "session", "abc", "v2", 0)
	if err != nil || !ok || v2 == v1 || v2 == 0 {
		t.Fatalf("UpdateWithVersion: v2=%d ok=%v err=%v", v2, ok, err)
	}

	// stale version is rejected and leaves the value unchanged
	_, _, err = s.UpdateWithVersion(ctx, v1, "session", "abc", "v3", 0)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale UpdateWithVersion err = %v, want ErrVersionMismatch", err)
	}
	rec, _, _ = s.Read(ctx, "session", "abc")
	if rec.Value != "v2" || rec.Version != v2 {
		t.Fatalf("after stale write: %+v, want v2/%d", rec, v2)
	}
	if len(hooks.conflicts) != 1 || hooks.conflicts[0] != "update_version" {
		t.Fatalf("conflict hooks = %v", hooks.conflicts)
	}
}

func TestUpdateWithVersionAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	// missing namespace: absent, not an error
	nv, ok, err := s.UpdateWithVersion(ctx, 1, "ctx", "k", "v", 0)
	if err != nil || ok || nv != 0 {
		t.Fatalf("UpdateWithVersion on missing context: nv=%d ok=%v err=%v", nv, ok, err)
	}

	_, _ = s.Create(ctx, "ctx", "present", "v", 0)
	nv, ok, err = s.UpdateWithVersion(ctx, 1, "ctx", "k", "v", 0)
	if err != nil || ok || nv != 0 {
		t.Fatalf("UpdateWithVersion on missing key: nv=%d ok=%v err=%v", nv, ok, err)
	}
}

func TestReadVersionProbe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	_, _ = s.Create(ctx, "ctx", "k", "v1", 0)
	rec, _, _ := s.Read(ctx, "ctx", "k")

	got, ok, stale, err := s.ReadVersion(ctx, "ctx", "k", rec.Version)
	if err != nil || !ok || stale || got.Value != "v1" {
		t.Fatalf("matching probe: ok=%v stale=%v rec=%+v err=%v", ok, stale, got, err)
	}

	// a stale probe signals staleness without returning the current record
	got, ok, stale, err = s.ReadVersion(ctx, "ctx", "k", rec.Version+1)
	if err != nil || ok || !stale || got.Value != "" {
		t.Fatalf("stale probe: ok=%v stale=%v rec=%+v err=%v", ok, stale, got, err)
	}

	_, ok, stale, err = s.ReadVersion(ctx, "ctx", "missing", rec.Version)
	if err != nil || ok || stale {
		t.Fatalf("absent probe: ok=%v stale=%v err=%v", ok, stale, err)
	}
}

func TestUpdateExpiration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	exp := time.Now().Add(time.Hour).UnixMilli()
	_, _ = s.Create(ctx, "ctx", "k", "v", exp)

	rec, _, _ := s.Read(ctx, "ctx", "k")
	if rec.Expiration != exp {
		t.Fatalf("stored expiration = %d, want %d", rec.Expiration, exp)
	}

	updated, err := s.UpdateExpiration(ctx, "ctx", "k", time.Now().Add(2*time.Hour).UnixMilli())
	if err != nil || !updated {
		t.Fatalf("UpdateExpiration: updated=%v err=%v", updated, err)
	}

	// touch does not rewrite the value or bump the version
	after, _, _ := s.Read(ctx, "ctx", "k")
	if after.Value != "v" || after.Version != rec.Version {
		t.Fatalf("touch rewrote the record: %+v", after)
	}

	if updated, _ := s.UpdateExpiration(ctx, "ctx", "missing", 0); updated {
		t.Fatalf("UpdateExpiration on missing key returned true")
	}
}

func TestDeleteFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	_, _ = s.Create(ctx, "ctx", "k", "v", 0)

	deleted, err := s.Delete(ctx, "ctx", "k")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, _ := s.Delete(ctx, "ctx", "k"); deleted {
		t.Fatalf("second Delete returned true")
	}
	if deleted, _ := s.Delete(ctx, "missing-ctx", "k"); deleted {
		t.Fatalf("Delete on missing context returned true")
	}
}

func TestDeleteWithVersionFlow(t *testing.T) {
	ctx := context.Background()
	hooks := &recHooks{}
	s := newTestStore(t, memory.New(0), func(o *Options) { o.Hooks = hooks })
	defer s.Close(ctx)

	_, _ = s.Create(ctx, "ctx", "k", "v", 0)
	rec, _, _ := s.Read(ctx, "ctx", "k")

	if _, err := s.DeleteWithVersion(ctx, rec.Version+1, "ctx", "k"); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("conditioned delete with stale version err = %v", err)
	}
	if _, ok, _ := s.Read(ctx, "ctx", "k"); !ok {
		t.Fatalf("conflicting delete removed the record")
	}
	if len(hooks.conflicts) != 1 || hooks.conflicts[0] != "delete_version" {
		t.Fatalf("conflict hooks = %v", hooks.conflicts)
	}

	deleted, err := s.DeleteWithVersion(ctx, rec.Version, "ctx", "k")
	if err != nil || !deleted {
		t.Fatalf("conditioned delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := s.DeleteWithVersion(ctx, rec.Version, "ctx", "k"); err != nil || deleted {
		t.Fatalf("conditioned delete on absent key: deleted=%v err=%v", deleted, err)
	}
}

// TestLongKeysTransparent stores and reads through the facade with a
// 300-character key; the codec reduces the composite to a 128-char digest.
func TestLongKeysTransparent(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(0)
	s := newTestStore(t, mem, nil)
	defer s.Close(ctx)

	longKey := strings.Repeat("k", 300)
	longCtx := strings.Repeat("c", 300)

	if created, err := s.Create(ctx, longCtx, longKey, "v", 0); err != nil || !created {
		t.Fatalf("Create with long names: created=%v err=%v", created, err)
	}
	rec, ok, err := s.Read(ctx, longCtx, longKey)
	if err != nil || !ok || rec.Value != "v" {
		t.Fatalf("Read with long names: ok=%v err=%v rec=%+v", ok, err, rec)
	}
	if updated, err := s.Update(ctx, longCtx, longKey, "v2", 0); err != nil || !updated {
		t.Fatalf("Update with long names: updated=%v err=%v", updated, err)
	}
}

// TestDeleteContext verifies namespace rotation: after deleting a context a
// fresh token is allocated and the old records are unreachable through the
// facade, though not physically purged.
func TestDeleteContext(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(0)
	s := newTestStore(t, mem, func(o *Options) {
		o.Tokens = &seqTokens{toks: []string{"ns-old", "ns-new"}}
	})
	defer s.Close(ctx)

	_, _ = s.Create(ctx, "session", "abc", "v1", 0)

	if err := s.DeleteContext(ctx, "session"); err != nil {
		t.Fatalf("DeleteContext: %v", err)
	}
	if _, ok, _ := s.Read(ctx, "session", "abc"); ok {
		t.Fatalf("record reachable after DeleteContext")
	}

	// forward and reverse mappings are gone
	if _, _, ok, _ := mem.Get(ctx, "ns-old"); ok {
		t.Fatalf("forward mapping survived DeleteContext")
	}
	if _, _, ok, _ := mem.Get(ctx, keys.Key("session")); ok {
		t.Fatalf("reverse mapping survived DeleteContext")
	}
	// the orphaned record is still physically present
	if _, _, ok, _ := mem.Get(ctx, keys.Key("ns-old", "abc")); !ok {
		t.Fatalf("orphaned record was purged")
	}

	// re-creating the context allocates a distinct namespace
	if _, err := s.Create(ctx, "session", "abc", "v2", 0); err != nil {
		t.Fatalf("Create after DeleteContext: %v", err)
	}
	tok, _, ok, _ := mem.Get(ctx, keys.Key("session"))
	if !ok || string(tok) != "ns-new" {
		t.Fatalf("new namespace = %q, want ns-new", tok)
	}
	rec, _, _ := s.Read(ctx, "session", "abc")
	if rec.Value != "v2" {
		t.Fatalf("read after rotation = %+v", rec)
	}

	// deleting a context that never existed is a no-op
	if err := s.DeleteContext(ctx, "never-written"); err != nil {
		t.Fatalf("DeleteContext on missing context: %v", err)
	}
}

func TestUnsupportedAndReap(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	if err := s.UpdateContextExpiration(ctx, "ctx", 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("UpdateContextExpiration err = %v, want ErrUnsupported", err)
	}
	if err := s.Reap(ctx, "ctx"); err != nil {
		t.Fatalf("Reap: %v", err)
	}
}

func TestArgumentValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New(0), nil)
	defer s.Close(ctx)

	if _, err := s.Create(ctx, "", "k", "v", 0); err == nil {
		t.Fatalf("empty context accepted")
	}
	if _, err := s.Create(ctx, "  ", "k", "v", 0); err == nil {
		t.Fatalf("blank context accepted")
	}
	if _, err := s.Create(ctx, "c", "", "v", 0); err == nil {
		t.Fatalf("empty key accepted")
	}
	if _, err := s.Create(ctx, "c", "k", "", 0); err == nil {
		t.Fatalf("empty value accepted")
	}
	if _, err := s.Create(ctx, "c", "k", "v", -1); err == nil {
		t.Fatalf("negative expiration accepted")
	}
	if _, _, err := s.UpdateWithVersion(ctx, 0, "c", "k", "v", 0); err == nil {
		t.Fatalf("zero version accepted")
	}
	if _, err := s.DeleteWithVersion(ctx, 0, "c", "k"); err == nil {
		t.Fatalf("zero version accepted for delete")
	}
	if _, _, _, err := s.ReadVersion(ctx, "c", "k", 0); err == nil {
		t.Fatalf("zero version accepted for probe")
	}
}

func TestCapabilities(t *testing.T) {
	ctx := context.Background()

	s := newTestStore(t, memory.New(0), nil)
	caps := s.Capabilities()
	if caps.MaxKeyLength != DefaultMaxKeyLength || caps.MaxValueLength != DefaultMaxValueLength {
		t.Fatalf("default caps = %+v", caps)
	}
	_ = s.Close(ctx)

	// override for a backend with a larger slab size
	s = newTestStore(t, memory.New(0), func(o *Options) {
		o.Capabilities = Capabilities{MaxValueLength: 4 << 20}
	})
	caps = s.Capabilities()
	if caps.MaxKeyLength != DefaultMaxKeyLength || caps.MaxValueLength != 4<<20 {
		t.Fatalf("overridden caps = %+v", caps)
	}
	_ = s.Close(ctx)
}
