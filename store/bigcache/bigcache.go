// Package bigcache provides a result store backed by allegro/bigcache.
//
// Results are encoded with a codec.Codec[V] and framed together with their
// computation time, so the store keeps large result sets off the Go heap at
// the cost of an encode/decode per access. Hits return a decoded copy, not
// the original value.
package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/ttlmemo/codec"
	"github.com/unkn0wn-root/ttlmemo/internal/wire"
	"github.com/unkn0wn-root/ttlmemo/store"
)

// defaultRetention bounds how long bigcache keeps an entry before dropping
// it on its own. A dropped entry is a miss and gets recomputed.
const defaultRetention = 24 * time.Hour

var ErrNilCodec = errors.New("bigcache store: nil codec")

type Config struct {
	Shards             int           // power of two; 0 => bigcache default (1024)
	Retention          time.Duration // bigcache LifeWindow; 0 => 24h
	CleanWindow        time.Duration // 0 = no background cleanup by bigcache
	MaxEntriesInWindow int
	MaxEntrySize       int
}

type Store[V any] struct {
	// mu makes ClearIfAny's scan-and-reset atomic; Get/Put share it.
	mu    sync.RWMutex
	c     *bc.BigCache
	codec codec.Codec[V]
}

var _ store.Store[struct{}] = (*Store[struct{}])(nil)

func New[V any](cfg Config, cd codec.Codec[V]) (*Store[V], error) {
	if cd == nil {
		return nil, ErrNilCodec
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	conf := bc.DefaultConfig(retention)
	conf.CleanWindow = cfg.CleanWindow
	conf.Verbose = false
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Store[V]{c: c, codec: cd}, nil
}

func (s *Store[V]) Get(key string) (store.Entry[V], bool, error) {
	var zero store.Entry[V]

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := s.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	at, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = s.c.Delete(key) // self-heal corrupt
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		_ = s.c.Delete(key) // self-heal
		return zero, false, nil
	}
	return store.Entry[V]{Value: v, StoredAt: at}, true, nil
}

func (s *Store[V]) Put(key string, e store.Entry[V]) error {
	payload, err := s.codec.Encode(e.Value)
	if err != nil {
		return err
	}
	frame := wire.EncodeEntry(e.StoredAt, payload)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Set(key, frame)
}

func (s *Store[V]) ClearIfAny(pred func(storedAt time.Time) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hit := false
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // removed underneath the iterator
		}
		at, err := wire.StoredAt(info.Value())
		if err != nil {
			continue
		}
		if pred(at) {
			hit = true
			break
		}
	}
	if !hit {
		return 0, nil
	}
	n := s.c.Len()
	if err := s.c.Reset(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store[V]) Len() int { return s.c.Len() }

func (s *Store[V]) Close() error { return s.c.Close() }
