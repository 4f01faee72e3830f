// Package prom exports ttlmemo events as Prometheus counters.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/ttlmemo"
)

// Hooks implements ttlmemo.Hooks with counters labelled by function name.
type Hooks struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	sweepResets *prometheus.CounterVec
	cleared     *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

var _ ttlmemo.Hooks = (*Hooks)(nil)

// New creates the counters and registers them on reg.
// It panics if they are already registered, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttlmemo_hits_total",
			Help: "Calls answered from a fresh cache entry",
		}, []string{"func"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttlmemo_misses_total",
			Help: "Calls that invoked the wrapped function",
		}, []string{"func", "stale"}),
		sweepResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttlmemo_sweep_resets_total",
			Help: "Result stores emptied by a sweep",
		}, []string{"func"}),
		cleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttlmemo_sweep_cleared_total",
			Help: "Entries removed by sweeps",
		}, []string{"func"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ttlmemo_errors_total",
			Help: "Key encoding and result store failures",
		}, []string{"func", "op"}),
	}
	reg.MustRegister(h.hits, h.misses, h.sweepResets, h.cleared, h.errors)
	return h
}

func (h *Hooks) Hit(fn string) { h.hits.WithLabelValues(fn).Inc() }

func (h *Hooks) Miss(fn string, stale bool) {
	h.misses.WithLabelValues(fn, strconv.FormatBool(stale)).Inc()
}

func (h *Hooks) KeyEncodeError(fn string, _ error) {
	h.errors.WithLabelValues(fn, "key").Inc()
}

func (h *Hooks) StoreError(fn, op string, _ error) {
	h.errors.WithLabelValues(fn, op).Inc()
}

func (h *Hooks) SweepReset(fn string, cleared int) {
	h.sweepResets.WithLabelValues(fn).Inc()
	h.cleared.WithLabelValues(fn).Add(float64(cleared))
}
