// usage:
//
//	import (
//		"log/slog"
//
//		"github.com/unkn0wn-root/ttlmemo"
//		asynchook "github.com/unkn0wn-root/ttlmemo/hooks/async"
//		sloghooks "github.com/unkn0wn-root/ttlmemo/hooks/slog"
//	)
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery:  100, // sample logs: ~every 100th hit
//	    MissEvery: 1,   // log every miss
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	policy, _ := ttlmemo.New(ttlmemo.Options{
//	    TTL:   time.Minute,
//	    Hooks: hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/ttlmemo"
)

// Hooks forwards events to inner from a pool of workers. Events are dropped
// when the queue is full or after Close.
type Hooks struct {
	inner   ttlmemo.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against concurrent sends
	closed  bool
	dropped atomic.Uint64
}

var _ ttlmemo.Hooks = (*Hooks)(nil)

func New(inner ttlmemo.Hooks, workers, qlen int) *Hooks {
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

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(fn string)               { h.try(func() { h.inner.Hit(fn) }) }
func (h *Hooks) Miss(fn string, stale bool)  { h.try(func() { h.inner.Miss(fn, stale) }) }
func (h *Hooks) SweepReset(fn string, n int) { h.try(func() { h.inner.SweepReset(fn, n) }) }
func (h *Hooks) KeyEncodeError(fn string, err error) {
	h.try(func() { h.inner.KeyEncodeError(fn, err) })
}
func (h *Hooks) StoreError(fn, op string, err error) {
	h.try(func() { h.inner.StoreError(fn, op, err) })
}
