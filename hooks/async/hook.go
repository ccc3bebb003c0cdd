// Package asynchook decouples hook callbacks from the storage hot path.
//
// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/nsstore"
//	"github.com/unkn0wn-root/nsstore/hooks/async"
//	"github.com/unkn0wn-root/nsstore/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    VersionConflictEvery: 10, // sample logs: ~every 10th conflict
//	    OpTimeoutEvery:       1,  // log every timeout
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	store, _ := nsstore.New(nsstore.Options{
//	    Backend: conn,
//	    Timeout: 2 * time.Second,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/nsstore"
)

type Hooks struct {
	inner nsstore.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ nsstore.Hooks = (*Hooks)(nil)

func New(inner nsstore.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) NamespaceCreated(c, ns string, n int) {
	h.try(func() { h.inner.NamespaceCreated(c, ns, n) })
}
func (h *Hooks) TokenCollision(tok string)  { h.try(func() { h.inner.TokenCollision(tok) }) }
func (h *Hooks) NamespaceRaceLost(c string) { h.try(func() { h.inner.NamespaceRaceLost(c) }) }
func (h *Hooks) VersionConflict(k, op string) {
	h.try(func() { h.inner.VersionConflict(k, op) })
}
func (h *Hooks) OpTimeout(op, k string) { h.try(func() { h.inner.OpTimeout(op, k) }) }
