package ttlmemo

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/ttlmemo/codec"
)

// Clock returns the current time. The same clock stamps entries and judges
// their freshness.
type Clock func() time.Time

// Args are the arguments of one call: positional values in order plus
// keyword values by name.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Argv builds Args from positional values.
func Argv(positional ...any) Args { return Args{Positional: positional} }

// With returns a copy of a with keyword argument name set to v.
func (a Args) With(name string, v any) Args {
	kw := make(map[string]any, len(a.Keyword)+1)
	for k, x := range a.Keyword {
		kw[k] = x
	}
	kw[name] = v
	return Args{Positional: a.Positional, Keyword: kw}
}

// Func is a function that can be memoized. It must be deterministic for the
// lifetime of a TTL window: equal Args produce equal results.
type Func[R any] func(ctx context.Context, args Args) (R, error)

// Options configure a Policy. All fields are optional.
type Options struct {
	TTL      time.Duration    // 0 => 3s; negative is rejected
	Registry *Registry        // nil => DefaultRegistry()
	KeyCodec c.Codec[CallKey] // nil => deterministic CBOR
	Logger   Logger           // nil => the registry's logger
	Hooks    Hooks            // nil => the registry's hooks
}

// RegistryOptions configure a Registry. All fields are optional.
type RegistryOptions struct {
	Clock         Clock         // nil => time.Now
	Logger        Logger        // nil => NopLogger
	Hooks         Hooks         // nil => NopHooks
	SweepInterval time.Duration // > 0 runs Sweep on a ticker until Close; 0 disables
}
