// Package memory provides an in-process backend.Conn.
//
// It exists for tests and for single-process deployments that want nsstore's
// namespace/versioning semantics without external infrastructure. CAS tokens
// are drawn from a store-wide counter, so a token is never reused across
// delete/recreate of the same key.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/nsstore/backend"
)

type entry struct {
	value    []byte
	token    uint64
	expireAt int64 // unix seconds; 0 => no expiration
}

// Store is a mutex-guarded map with lazy expiry on read and an optional
// periodic sweep of expired entries.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	seq     uint64

	now func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ backend.Conn = (*Store)(nil)

// New creates a Store. sweepInterval > 0 starts a background goroutine that
// prunes expired entries; 0 disables the sweep (entries still expire lazily
// on access).
func New(sweepInterval time.Duration) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	if sweepInterval > 0 {
		s.ticker = time.NewTicker(sweepInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.sweep()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Store) expired(e entry) bool {
	return e.expireAt != 0 && s.now().Unix() >= e.expireAt
}

// live returns the entry at key, dropping it first if it has expired.
// Callers must hold the write lock.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if s.expired(e) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) Get(_ context.Context, key string) ([]byte, uint64, bool, error) {
	s.mu.Lock()
	e, ok := s.live(key)
	s.mu.Unlock()
	if !ok {
		return nil, 0, false, nil
	}
	return e.value, e.token, true, nil
}

func (s *Store) Add(_ context.Context, key string, value []byte, expiration int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.store(key, value, expiration)
	return true, nil
}

func (s *Store) Replace(_ context.Context, key string, value []byte, expiration int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); !ok {
		return false, nil
	}
	s.store(key, value, expiration)
	return true, nil
}

func (s *Store) CompareAndSwap(_ context.Context, key string, value []byte, expiration int64, token uint64) (backend.CASOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return backend.CASNotFound, nil
	}
	if e.token != token {
		return backend.CASConflict, nil
	}
	s.store(key, value, expiration)
	return backend.CASStored, nil
}

func (s *Store) Touch(_ context.Context, key string, expiration int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return false, nil
	}
	e.expireAt = expiration
	s.entries[key] = e
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *Store) DeleteWithToken(_ context.Context, key string, token uint64) (backend.CASOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok {
		return backend.CASNotFound, nil
	}
	if e.token != token {
		return backend.CASConflict, nil
	}
	delete(s.entries, key)
	return backend.CASStored, nil
}

// store writes the entry with a fresh token. Callers must hold the write lock.
func (s *Store) store(key string, value []byte, expiration int64) {
	s.seq++
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = entry{value: v, token: s.seq, expireAt: expiration}
}

func (s *Store) sweep() {
	s.mu.Lock()
	for k, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

// Len reports the number of entries, counting not-yet-swept expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
