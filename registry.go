package ttlmemo

import (
	"fmt"
	"sync"
	"time"
)

// Sweepable is the part of a result store the registry needs to sweep it.
// Every store.Store[V] satisfies it.
type Sweepable interface {
	ClearIfAny(pred func(storedAt time.Time) bool) (int, error)
	Len() int
}

type registration struct {
	handle Handle
	ttl    time.Duration
	store  Sweepable
}

// Registry maps each memoized function to its TTL and private result store.
// It is safe for concurrent use.
type Registry struct {
	clock Clock
	log   Logger
	hooks Hooks

	mu    sync.RWMutex
	regs  map[Handle]*registration
	order []Handle // registration order, for Functions and Sweep

	// background sweep
	sweepInterval time.Duration
	ticker        *time.Ticker
	stopCh        chan struct{}
	closeWg       sync.WaitGroup
	closeOnce     sync.Once
}

var defaultRegistry = newRegistry(RegistryOptions{})

// DefaultRegistry returns the process-wide registry used by every Policy
// created without Options.Registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// NewRegistry returns an empty Registry, starting its sweep loop when
// opts.SweepInterval is positive.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.SweepInterval < 0 {
		return nil, fmt.Errorf("ttlmemo: sweep interval must not be negative, got %v", opts.SweepInterval)
	}
	r := newRegistry(opts)
	if r.sweepInterval > 0 {
		r.ticker = time.NewTicker(r.sweepInterval)
		r.stopCh = make(chan struct{})
		r.closeWg.Add(1)
		go r.sweepLoop()
		r.log.Debug("sweep loop started", Fields{"interval": r.sweepInterval})
	}
	return r, nil
}

func newRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		regs:          make(map[Handle]*registration),
		sweepInterval: opts.SweepInterval,
	}
	r.clock = opts.Clock
	if r.clock == nil {
		r.clock = time.Now
	}
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return r
}

// Register records h with ttl and a store built by newStore. Only the first
// registration of a handle wins: later calls return the existing store and
// registered=false, leaving its TTL and store untouched (newStore is not
// called).
func (r *Registry) Register(h Handle, ttl time.Duration, newStore func() Sweepable) (s Sweepable, registered bool, err error) {
	if h.IsZero() {
		return nil, false, ErrInvalidHandle
	}
	r.mu.Lock()
	if reg, ok := r.regs[h]; ok {
		r.mu.Unlock()
		r.log.Debug("function already registered; keeping first ttl and store",
			Fields{"func": h.Name(), "ttl": reg.ttl, "requestedTTL": ttl})
		return reg.store, false, nil
	}
	reg := &registration{handle: h, ttl: ttl, store: newStore()}
	r.regs[h] = reg
	r.order = append(r.order, h)
	r.mu.Unlock()

	r.log.Debug("registered memoized function", Fields{"func": h.Name(), "ttl": ttl})
	return reg.store, true, nil
}

// StoreFor returns the result store registered for h.
func (r *Registry) StoreFor(h Handle) (Sweepable, error) {
	r.mu.RLock()
	reg, ok := r.regs[h]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotRegistered
	}
	return reg.store, nil
}

// TTLFor returns the TTL registered for h.
func (r *Registry) TTLFor(h Handle) (time.Duration, error) {
	r.mu.RLock()
	reg, ok := r.regs[h]
	r.mu.RUnlock()
	if !ok {
		return 0, ErrNotRegistered
	}
	return reg.ttl, nil
}

// FunctionInfo describes one registered function.
type FunctionInfo struct {
	Handle  Handle
	Name    string
	TTL     time.Duration
	Entries int
}

// Functions lists registered functions in registration order.
func (r *Registry) Functions() []FunctionInfo {
	regs := r.snapshot()
	out := make([]FunctionInfo, 0, len(regs))
	for _, reg := range regs {
		out = append(out, FunctionInfo{
			Handle:  reg.handle,
			Name:    reg.handle.Name(),
			TTL:     reg.ttl,
			Entries: reg.store.Len(),
		})
	}
	return out
}

func (r *Registry) snapshot() []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*registration, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.regs[h])
	}
	return out
}

// Close stops the background sweep loop, if any. Registered functions keep
// working. Safe to call multiple times.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		if r.stopCh != nil {
			close(r.stopCh)
			r.closeWg.Wait()
			r.ticker.Stop()
			r.log.Debug("sweep loop stopped", nil)
		}
	})
}

func (r *Registry) sweepLoop() {
	defer r.closeWg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.Sweep()
		case <-r.stopCh:
			return
		}
	}
}
