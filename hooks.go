package ttlmemo

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Hit and Miss run on every call.
type Hooks interface {
	// A fresh entry was returned without invoking the function.
	Hit(fn string)

	// The function is about to be invoked. stale is true when an expired
	// entry existed for the key.
	Miss(fn string, stale bool)

	// Call arguments could not be encoded into a key.
	KeyEncodeError(fn string, err error)

	// A result store operation failed. op ∈ {"get", "put", "sweep"}.
	StoreError(fn, op string, err error)

	// A sweep reset the function's whole store, removing cleared entries.
	SweepReset(fn string, cleared int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                       {}
func (NopHooks) Miss(string, bool)                {}
func (NopHooks) KeyEncodeError(string, error)     {}
func (NopHooks) StoreError(string, string, error) {}
func (NopHooks) SweepReset(string, int)           {}
