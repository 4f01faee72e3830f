// Package store defines the result store used by ttlmemo.
//
// A result store holds the memoized results of exactly one function, keyed by
// encoded call key. Each entry carries the time it was computed; freshness is
// decided by the caller, never by the store. Stores do not expire or evict
// entries on their own.
package store

import "time"

// Entry is a computed result and the time it was computed.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Store is a per-function result store.
// Must be safe for concurrent use. Put replaces any entry at key wholesale.
type Store[V any] interface {
	// Get returns (entry, true, nil) on hit; (zero, false, nil) on miss.
	Get(key string) (Entry[V], bool, error)

	// Put stores e under key, overwriting any existing entry.
	Put(key string, e Entry[V]) error

	// ClearIfAny empties the whole store when pred reports true for at
	// least one entry's StoredAt. The check and the clear are atomic with
	// respect to Get and Put. Returns the number of entries removed.
	ClearIfAny(pred func(storedAt time.Time) bool) (int, error)

	// Len returns the number of stored entries.
	Len() int

	// Close releases resources.
	Close() error
}
