package ttlmemo

import "time"

// DefaultTTL applies when Options.TTL is zero.
const DefaultTTL = 3 * time.Second

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
