// Package sloghooks implements ttlmemo.Hooks on top of log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/ttlmemo"
)

type Options struct {
	// Sampling to avoid floods on hot functions; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ ttlmemo.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(fn string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("ttlmemo.hit", "func", fn)
}

func (h *Hooks) Miss(fn string, stale bool) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("ttlmemo.miss", "func", fn, "stale", stale)
}

func (h *Hooks) KeyEncodeError(fn string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("ttlmemo.key_encode_error", "func", fn, "err", err)
}

func (h *Hooks) StoreError(fn, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("ttlmemo.store_error", "func", fn, "op", op, "err", err)
}

func (h *Hooks) SweepReset(fn string, cleared int) {
	if h.l == nil {
		return
	}
	h.l.Info("ttlmemo.sweep_reset", "func", fn, "cleared", cleared)
}
