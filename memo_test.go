package ttlmemo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/ttlmemo/codec"
	"github.com/unkn0wn-root/ttlmemo/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestPolicy(t *testing.T, ttl time.Duration, clk *fakeClock, optsOpt func(*Options)) *Policy {
	t.Helper()
	reg, err := NewRegistry(RegistryOptions{Clock: clk.Now})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(reg.Close)
	opts := Options{TTL: ttl, Registry: reg}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// countingAdd sums positional ints and counts real invocations.
func countingAdd(calls *atomic.Int32) Func[int] {
	return func(_ context.Context, args Args) (int, error) {
		calls.Add(1)
		sum := 0
		for _, a := range args.Positional {
			sum += a.(int)
		}
		for _, v := range args.Keyword {
			sum += v.(int)
		}
		return sum, nil
	}
}

func TestNewDefaultsAndValidation(t *testing.T) {
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.TTL() != DefaultTTL || p.TTL() != 3*time.Second {
		t.Fatalf("default ttl = %v, want 3s", p.TTL())
	}
	if p.Registry() != DefaultRegistry() {
		t.Fatalf("expected default registry")
	}
	if _, err := New(Options{TTL: -time.Second}); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}

func TestWrapRejectsNilFunc(t *testing.T) {
	p := newTestPolicy(t, time.Second, newFakeClock(), nil)
	if _, err := Wrap[int](p, nil); !errors.Is(err, ErrNilFunc) {
		t.Fatalf("err = %v, want ErrNilFunc", err)
	}
}

// TestWithinTTLInvokesOnce: two calls inside the window hit the function once.
func TestWithinTTLInvokesOnce(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	p := newTestPolicy(t, 3*time.Second, clk, nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls), WithName[int]("add"))

	v1, err := m.Call(ctx, Argv(1, 2))
	if err != nil || v1 != 3 {
		t.Fatalf("first call: v=%d err=%v", v1, err)
	}
	clk.Advance(time.Second)
	v2, err := m.Call(ctx, Argv(1, 2))
	if err != nil || v2 != 3 {
		t.Fatalf("second call: v=%d err=%v", v2, err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("invocations = %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestHitReturnsIdenticalValue(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	type market struct{ ID string }
	m := MustWrap(p, func(_ context.Context, args Args) (*market, error) {
		return &market{ID: args.Positional[0].(string)}, nil
	})

	a, _ := m.Call(ctx, Argv("m1"))
	b, _ := m.Call(ctx, Argv("m1"))
	if a != b {
		t.Fatalf("expected the same pointer on hit, got %p and %p", a, b)
	}
}

func TestExpiredEntryRecomputes(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	p := newTestPolicy(t, 3*time.Second, clk, nil)

	n := 0
	m := MustWrap(p, func(context.Context, Args) (int, error) {
		n++
		return n, nil
	})

	if v, _ := m.Call(ctx, Argv("k")); v != 1 {
		t.Fatalf("first = %d, want 1", v)
	}
	clk.Advance(3*time.Second + time.Nanosecond)
	if v, _ := m.Call(ctx, Argv("k")); v != 2 {
		t.Fatalf("after expiry = %d, want 2 (fresh invocation)", v)
	}
	if m.Len() != 1 {
		t.Fatalf("stale entry should be overwritten in place, Len = %d", m.Len())
	}
}

func TestExactlyTTLIsStillFresh(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	p := newTestPolicy(t, 3*time.Second, clk, nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))
	_, _ = m.Call(ctx, Argv(1))
	clk.Advance(3 * time.Second)
	_, _ = m.Call(ctx, Argv(1))
	if calls.Load() != 1 {
		t.Fatalf("invocations = %d, want 1 at exactly ttl", calls.Load())
	}
}

func TestKeywordOrderDoesNotMatter(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))

	a := Args{Keyword: map[string]any{}}.With("x", 1).With("y", 2)
	b := Args{}.With("y", 2).With("x", 1)
	va, _ := m.Call(ctx, a)
	vb, _ := m.Call(ctx, b)
	if va != 3 || vb != 3 {
		t.Fatalf("values = %d, %d", va, vb)
	}
	if calls.Load() != 1 || m.Len() != 1 {
		t.Fatalf("calls=%d len=%d, want one shared entry", calls.Load(), m.Len())
	}
}

func TestDistinctKeys(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))

	cases := []Args{
		Argv(1, 2),
		Argv(2, 1),
		Argv(1).With("y", 2), // keyword vs positional
		Argv(1).With("z", 2), // keyword name matters
		Argv(1, 3),
	}
	for _, a := range cases {
		if _, err := m.Call(ctx, a); err != nil {
			t.Fatalf("Call(%v): %v", a, err)
		}
	}
	if got := int(calls.Load()); got != len(cases) {
		t.Fatalf("invocations = %d, want %d", got, len(cases))
	}
	if m.Len() != len(cases) {
		t.Fatalf("Len = %d, want %d", m.Len(), len(cases))
	}
}

type secret struct{ id int }

type pointA struct{ X int }

type pointB struct{ X int }

// countingEcho returns the invocation number, so a cached answer is easy to
// tell apart from a fresh one.
func countingEcho(calls *atomic.Int32) Func[int] {
	return func(context.Context, Args) (int, error) {
		return int(calls.Add(1)), nil
	}
}

func TestArgTypesAreKeyed(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingEcho(&calls))

	cases := []Args{
		Argv(pointA{1}),
		Argv(pointB{1}),
		Argv(&pointA{1}),
		Argv(int(5)),
		Argv(int64(5)),
		Argv(uint64(5)),
		Argv(float64(5)),
		Argv("5"),
		Argv([]any{int(1)}),
		Argv([]any{int64(1)}),
		Argv().With("n", int(5)),
		Argv().With("n", int32(5)),
		Argv(nil),
	}
	for i, a := range cases {
		got, err := m.Call(ctx, a)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got != i+1 {
			t.Fatalf("case %d (%v) returned %d: served another call's result", i, a, got)
		}
	}
	if m.Len() != len(cases) {
		t.Fatalf("Len = %d, want %d", m.Len(), len(cases))
	}
}

func TestUnexportedFieldsAreRejected(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingEcho(&calls), WithName[int]("echo"))

	cases := map[string]Args{
		"positional": Argv(secret{1}),
		"pointer":    Argv(&secret{2}),
		"keyword":    Argv().With("s", secret{3}),
		"nested":     Argv([]any{pointA{1}, secret{4}}),
		"map_value":  Argv(map[string]secret{"a": {5}}),
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Call(ctx, args)
			var ke *KeyError
			if !errors.As(err, &ke) || !errors.Is(err, ErrUnkeyable) {
				t.Fatalf("err = %v, want KeyError wrapping ErrUnkeyable", err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Fatalf("function ran %d times for unkeyable args", calls.Load())
	}
}

func TestEqualValuesShareKey(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingEcho(&calls))

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pairs := []struct {
		name string
		a, b Args
	}{
		{"map_order", Argv(map[string]int{"x": 1, "y": 2}), Argv(map[string]int{"y": 2, "x": 1})},
		{"nil_and_empty_slice", Argv([]int(nil)), Argv([]int{})},
		{"pointer_targets", Argv(&pointA{7}), Argv(&pointA{7})},
		{"time", Argv(at), Argv(at.Add(0))},
	}
	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			before := calls.Load()
			va, err := m.Call(ctx, tc.a)
			if err != nil {
				t.Fatalf("first call: %v", err)
			}
			vb, err := m.Call(ctx, tc.b)
			if err != nil {
				t.Fatalf("second call: %v", err)
			}
			if va != vb || calls.Load() != before+1 {
				t.Fatalf("values %d, %d after %d invocations, want one shared entry", va, vb, calls.Load()-before)
			}
		})
	}

	if _, err := m.Call(ctx, Argv(at.Add(time.Nanosecond))); err != nil {
		t.Fatal(err)
	}
	if got := int(calls.Load()); got != len(pairs)+1 {
		t.Fatalf("a different instant should miss: invocations = %d", got)
	}
}

func mustKeyCBOR(t *testing.T) c.Codec[CallKey] {
	t.Helper()
	kc, err := c.NewKeyCBOR[CallKey]()
	if err != nil {
		t.Fatalf("NewKeyCBOR: %v", err)
	}
	return kc
}

func TestEmptyArgsShareKey(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))
	_, _ = m.Call(ctx, Argv())
	_, _ = m.Call(ctx, Args{Positional: []any{}, Keyword: map[string]any{}})
	if calls.Load() != 1 {
		t.Fatalf("invocations = %d, want 1", calls.Load())
	}
}

// TestFailureDoesNotCache: errors propagate verbatim and never touch the store.
func TestFailureDoesNotCache(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	p := newTestPolicy(t, 3*time.Second, clk, nil)

	errBoom := errors.New("boom")
	fail := false
	n := 0
	m := MustWrap(p, func(context.Context, Args) (int, error) {
		n++
		if fail {
			return -1, errBoom
		}
		return n, nil
	})

	t.Run("miss_failure_stores_nothing", func(t *testing.T) {
		fail = true
		v, err := m.Call(ctx, Argv("a"))
		if !errors.Is(err, errBoom) || err != errBoom {
			t.Fatalf("err = %v, want verbatim errBoom", err)
		}
		if v != 0 {
			t.Fatalf("v = %d, want zero value on error", v)
		}
		if m.Len() != 0 {
			t.Fatalf("failed call stored an entry")
		}
	})

	t.Run("stale_failure_keeps_previous_entry", func(t *testing.T) {
		fail = false
		v, err := m.Call(ctx, Argv("b"))
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		clk.Advance(4 * time.Second)
		fail = true
		if _, err := m.Call(ctx, Argv("b")); !errors.Is(err, errBoom) {
			t.Fatalf("err = %v, want errBoom", err)
		}
		e, ok, _ := m.store.Get(mustKey(t, m, Argv("b")))
		if !ok || e.Value != v {
			t.Fatalf("previous entry lost: ok=%v entry=%+v", ok, e)
		}
	})

	t.Run("fresh_entry_survives_failure", func(t *testing.T) {
		fail = false
		v, _ := m.Call(ctx, Argv("c"))
		fail = true
		got, err := m.Call(ctx, Argv("c"))
		if err != nil || got != v {
			t.Fatalf("fresh entry should be served: got=%d err=%v", got, err)
		}
	})
}

func mustKey[R any](t *testing.T, m *Memo[R], args Args) string {
	t.Helper()
	k, err := encodeKey(m.keys, args)
	if err != nil {
		t.Fatalf("encodeKey: %v", err)
	}
	return k
}

func TestUnencodableArgsReturnKeyError(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls), WithName[int]("add"))
	_, err := m.Call(ctx, Argv(make(chan int)))

	var ke *KeyError
	if !errors.As(err, &ke) {
		t.Fatalf("err = %v, want *KeyError", err)
	}
	if ke.Func != "add" || ke.Unwrap() == nil {
		t.Fatalf("unexpected KeyError %+v", ke)
	}
	if calls.Load() != 0 {
		t.Fatalf("function should not run when the key cannot be built")
	}
}

func TestKeyCodecsAgreeOnSemantics(t *testing.T) {
	codecs := map[string]c.Codec[CallKey]{
		"cbor":    mustKeyCBOR(t),
		"msgpack": c.Msgpack[CallKey]{},
		"json":    c.JSON[CallKey]{},
	}
	for name, kc := range codecs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := newTestPolicy(t, time.Minute, newFakeClock(), func(o *Options) { o.KeyCodec = kc })
			var calls atomic.Int32
			m := MustWrap(p, countingAdd(&calls))

			_, _ = m.Call(ctx, Argv(1).With("x", 2).With("y", 3))
			_, _ = m.Call(ctx, Argv(1).With("y", 3).With("x", 2))
			_, _ = m.Call(ctx, Argv(1, 2, 3))
			if calls.Load() != 2 {
				t.Fatalf("invocations = %d, want 2", calls.Load())
			}
		})
	}
}

type failingStore struct {
	*store.Map[int]
	getErr, putErr error
}

func (s *failingStore) Get(k string) (store.Entry[int], bool, error) {
	if s.getErr != nil {
		return store.Entry[int]{}, false, s.getErr
	}
	return s.Map.Get(k)
}

func (s *failingStore) Put(k string, e store.Entry[int]) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Map.Put(k, e)
}

type recordingHooks struct {
	NopHooks
	mu       sync.Mutex
	hits     int
	misses   int
	stale    int
	storeOps []string
	resets   map[string]int
}

func (h *recordingHooks) Hit(string) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}

func (h *recordingHooks) Miss(_ string, stale bool) {
	h.mu.Lock()
	h.misses++
	if stale {
		h.stale++
	}
	h.mu.Unlock()
}

func (h *recordingHooks) StoreError(_, op string, _ error) {
	h.mu.Lock()
	h.storeOps = append(h.storeOps, op)
	h.mu.Unlock()
}

func (h *recordingHooks) SweepReset(fn string, n int) {
	h.mu.Lock()
	if h.resets == nil {
		h.resets = make(map[string]int)
	}
	h.resets[fn] += n
	h.mu.Unlock()
}

func TestStoreErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	p := newTestPolicy(t, time.Minute, newFakeClock(), func(o *Options) { o.Hooks = hooks })

	fs := &failingStore{Map: store.NewMap[int](), getErr: errors.New("read"), putErr: errors.New("write")}
	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls), WithStore[int](fs))

	for i := 0; i < 2; i++ {
		v, err := m.Call(ctx, Argv(2, 2))
		if err != nil || v != 4 {
			t.Fatalf("call %d: v=%d err=%v", i, v, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("invocations = %d, want 2 (nothing cacheable)", calls.Load())
	}
	if len(hooks.storeOps) != 4 {
		t.Fatalf("store errors = %v, want get/put twice", hooks.storeOps)
	}
}

func TestHooksSeeHitsAndStaleMisses(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	hooks := &recordingHooks{}
	p := newTestPolicy(t, time.Second, clk, func(o *Options) { o.Hooks = hooks })

	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))
	_, _ = m.Call(ctx, Argv(1)) // miss
	_, _ = m.Call(ctx, Argv(1)) // hit
	clk.Advance(2 * time.Second)
	_, _ = m.Call(ctx, Argv(1)) // stale miss

	if hooks.hits != 1 || hooks.misses != 2 || hooks.stale != 1 {
		t.Fatalf("hits=%d misses=%d stale=%d", hooks.hits, hooks.misses, hooks.stale)
	}
}

func TestCoalescingSharesOneInvocation(t *testing.T) {
	ctx := context.Background()
	p := newTestPolicy(t, time.Minute, newFakeClock(), nil)

	var calls atomic.Int32
	release := make(chan struct{})
	m := MustWrap(p, func(context.Context, Args) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}, WithCoalescing[int]())

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], _ = m.Call(ctx, Argv("k"))
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond) // let callers pile up on the flight
	close(release)
	done.Wait()

	if calls.Load() != 1 {
		t.Fatalf("invocations = %d, want 1", calls.Load())
	}
	for i, v := range results {
		if v != 42 {
			t.Fatalf("caller %d got %d", i, v)
		}
	}
}

func TestConcurrentCallsAndSweeps(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(RegistryOptions{})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p, err := New(Options{TTL: time.Millisecond, Registry: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var calls atomic.Int32
	m := MustWrap(p, countingAdd(&calls))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v, err := m.Call(ctx, Argv(g, i%5))
				if err != nil || v != g+i%5 {
					t.Errorf("Call(%d,%d) = %d, %v", g, i%5, v, err)
					return
				}
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			reg.Sweep()
		}
	}()
	wg.Wait()
}
