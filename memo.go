package ttlmemo

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/ttlmemo/codec"
	"github.com/unkn0wn-root/ttlmemo/internal/util"
	"github.com/unkn0wn-root/ttlmemo/store"
)

const tracerName = "github.com/unkn0wn-root/ttlmemo"

// result labels for spans
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
	resultError = "error"
)

// Policy is a memoization policy: one TTL applied to every function wrapped
// with it. Policies sharing a Registry are swept together.
type Policy struct {
	ttl   time.Duration
	reg   *Registry
	keys  c.Codec[CallKey]
	log   Logger
	hooks Hooks
}

// New builds a Policy from opts, filling zero fields with defaults.
func New(opts Options) (*Policy, error) {
	if opts.TTL < 0 {
		return nil, fmt.Errorf("ttlmemo: ttl must not be negative, got %v", opts.TTL)
	}
	p := &Policy{
		ttl: coalesce[time.Duration](opts.TTL, DefaultTTL),
		reg: opts.Registry,
	}
	if p.reg == nil {
		p.reg = defaultRegistry
	}
	if opts.KeyCodec != nil {
		p.keys = opts.KeyCodec
	} else {
		kc, err := c.NewKeyCBOR[CallKey]()
		if err != nil {
			return nil, fmt.Errorf("ttlmemo: key codec: %w", err)
		}
		p.keys = kc
	}
	p.log = coalesce[Logger](opts.Logger, p.reg.log)
	p.hooks = coalesce[Hooks](opts.Hooks, p.reg.hooks)
	return p, nil
}

func (p *Policy) TTL() time.Duration  { return p.ttl }
func (p *Policy) Registry() *Registry { return p.reg }
func (p *Policy) Sweep() SweepReport  { return p.reg.Sweep() }

// WrapOption configures a single wrapped function.
type WrapOption[R any] func(*wrapConfig[R])

type wrapConfig[R any] struct {
	name     string
	handle   Handle
	store    store.Store[R]
	tracing  bool
	tp       trace.TracerProvider
	coalesce bool
}

// WithName names the function in logs, hooks and spans. Defaults to the Go
// symbol name of the wrapped function.
func WithName[R any](name string) WrapOption[R] {
	return func(cfg *wrapConfig[R]) { cfg.name = name }
}

// WithHandle wraps under an existing handle. If the handle is already
// registered its TTL and store are reused, whatever this Policy says.
func WithHandle[R any](h Handle) WrapOption[R] {
	return func(cfg *wrapConfig[R]) { cfg.handle = h }
}

// WithStore sets the result store. The default is store.NewMap[R]().
// Ignored when WithHandle names an already registered handle.
func WithStore[R any](s store.Store[R]) WrapOption[R] {
	return func(cfg *wrapConfig[R]) { cfg.store = s }
}

// WithTracing starts an OpenTelemetry span per call. A nil provider means the
// global one.
func WithTracing[R any](tp trace.TracerProvider) WrapOption[R] {
	return func(cfg *wrapConfig[R]) {
		cfg.tracing = true
		cfg.tp = tp
	}
}

// WithCoalescing collapses concurrent misses on the same key into a single
// invocation; the waiting callers share its result or error. The context of
// the first caller is the one passed to the function.
func WithCoalescing[R any]() WrapOption[R] {
	return func(cfg *wrapConfig[R]) { cfg.coalesce = true }
}

// Memo is a memoized function.
type Memo[R any] struct {
	handle Handle
	ttl    time.Duration
	fn     Func[R]
	store  store.Store[R]
	keys   c.Codec[CallKey]
	clock  Clock
	log    Logger
	hooks  Hooks

	tracer trace.Tracer        // nil => no spans
	group  *singleflight.Group // nil => no coalescing
}

// Wrap registers fn with p's registry and returns its memoizing wrapper.
func Wrap[R any](p *Policy, fn Func[R], opts ...WrapOption[R]) (*Memo[R], error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	var cfg wrapConfig[R]
	for _, opt := range opts {
		opt(&cfg)
	}

	h := cfg.handle
	if h.IsZero() {
		h = NewHandle(coalesce(cfg.name, funcName(fn)))
	}
	sw, _, err := p.reg.Register(h, p.ttl, func() Sweepable {
		if cfg.store != nil {
			return cfg.store
		}
		return store.NewMap[R]()
	})
	if err != nil {
		return nil, err
	}
	st, ok := sw.(store.Store[R])
	if !ok {
		return nil, ErrStoreType
	}
	ttl, err := p.reg.TTLFor(h)
	if err != nil {
		return nil, err
	}

	m := &Memo[R]{
		handle: h,
		ttl:    ttl,
		fn:     fn,
		store:  st,
		keys:   p.keys,
		clock:  p.reg.clock,
		log:    p.log,
		hooks:  p.hooks,
	}
	if cfg.tracing {
		tp := cfg.tp
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		m.tracer = tp.Tracer(tracerName)
	}
	if cfg.coalesce {
		m.group = &singleflight.Group{}
	}
	return m, nil
}

// MustWrap is like Wrap but panics on error.
func MustWrap[R any](p *Policy, fn Func[R], opts ...WrapOption[R]) *Memo[R] {
	m, err := Wrap(p, fn, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Memo[R]) Handle() Handle     { return m.handle }
func (m *Memo[R]) Name() string       { return m.handle.Name() }
func (m *Memo[R]) TTL() time.Duration { return m.ttl }
func (m *Memo[R]) Len() int           { return m.store.Len() }

// Func returns m.Call as a plain function value.
func (m *Memo[R]) Func() Func[R] { return m.Call }

// Call returns the memoized result for args, invoking the wrapped function
// when no fresh entry exists. An error from the function is returned as-is
// and nothing is stored; an earlier entry for the key stays in place.
func (m *Memo[R]) Call(ctx context.Context, args Args) (R, error) {
	if m.tracer == nil {
		v, _, err := m.call(ctx, args)
		return v, err
	}

	ctx, span := m.tracer.Start(ctx, "ttlmemo.Call",
		trace.WithAttributes(attribute.String("ttlmemo.func", m.Name())))
	defer span.End()

	v, result, err := m.call(ctx, args)
	span.SetAttributes(attribute.String("ttlmemo.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func (m *Memo[R]) call(ctx context.Context, args Args) (R, string, error) {
	var zero R
	name := m.Name()

	key, err := encodeKey(m.keys, args)
	if err != nil {
		m.hooks.KeyEncodeError(name, err)
		return zero, resultError, &KeyError{Func: name, Err: err}
	}

	e, ok, err := m.store.Get(key)
	if err != nil {
		m.log.Warn("store read failed; recomputing", Fields{"func": name, "key": util.Fingerprint(key), "err": err})
		m.hooks.StoreError(name, "get", err)
		ok = false
	}
	if ok && m.fresh(e.StoredAt) {
		m.hooks.Hit(name)
		return e.Value, resultHit, nil
	}
	stale := ok
	m.hooks.Miss(name, stale)

	v, err := m.compute(ctx, key, args)
	if err != nil {
		return zero, resultError, err
	}
	if stale {
		return v, resultStale, nil
	}
	return v, resultMiss, nil
}

// fresh reports now - storedAt <= ttl; exactly ttl elapsed is still fresh.
func (m *Memo[R]) fresh(storedAt time.Time) bool {
	return m.clock().Sub(storedAt) <= m.ttl
}

func (m *Memo[R]) compute(ctx context.Context, key string, args Args) (R, error) {
	if m.group == nil {
		return m.computeAndStore(ctx, key, args)
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.computeAndStore(ctx, key, args)
	})
	if err != nil {
		var zero R
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}

func (m *Memo[R]) computeAndStore(ctx context.Context, key string, args Args) (R, error) {
	v, err := m.fn(ctx, args)
	if err != nil {
		var zero R
		return zero, err
	}
	if err := m.store.Put(key, store.Entry[R]{Value: v, StoredAt: m.clock()}); err != nil {
		m.log.Warn("store write failed; result not cached", Fields{"func": m.Name(), "key": util.Fingerprint(key), "err": err})
		m.hooks.StoreError(m.Name(), "put", err)
	}
	return v, nil
}
