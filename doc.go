// Package ttlmemo memoizes function results for a fixed time-to-live.
//
// A Policy carries one TTL. Wrapping a function with it yields a Memo whose
// Call computes the function at most once per TTL window per distinct call
// key; a later call on a stale key recomputes and overwrites the entry.
// Failed calls are never cached and never evict the previous value.
//
// Components:
//   - Registry: per-function TTL and result store, keyed by Handle. A
//     process-wide default registry is shared by every Policy that does not
//     inject its own.
//   - Memo[R]: the memoizing wrapper (lookup, compute, store).
//   - Sweep: a maintenance pass that resets the whole result store of every
//     function holding at least one stale entry.
//
// Call keys:
//
//	f(1, 2)            -> positional [1 2]
//	f(1, x=2, y=3)     -> positional [1], keyword [(x 2) (y 3)]
//	f(1, y=3, x=2)     -> same key as above
//	f(int64(1), 2)     -> differs from f(1, 2): int and int64 are distinct
//
// Each argument is keyed with its Go type and its value, then encoded with a
// deterministic codec (CBOR by default). Arguments that cannot be keyed
// without losing information, such as structs with unexported fields, funcs
// or channels, fail the call with a *KeyError wrapping ErrUnkeyable.
//
// Usage:
//
//	p, _ := ttlmemo.New(ttlmemo.Options{TTL: 3 * time.Second})
//	add, _ := ttlmemo.Wrap2(p, func(_ context.Context, a, b int) (int, error) { return a + b, nil })
//	v, _ := add(ctx, 1, 2) // computed
//	v, _ = add(ctx, 1, 2)  // cached
//	ttlmemo.Sweep()        // purge stale stores in the default registry
package ttlmemo
