package ttlmemo

import "time"

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Checked int      // functions examined
	Reset   []string // names of functions whose store was emptied
	Cleared int      // entries removed across all reset stores
	Errors  int      // stores that failed to sweep (logged, skipped)
}

// Sweep resets the whole result store of every registered function that
// holds at least one stale entry (now - storedAt > ttl). Functions with only
// fresh entries, or none, are untouched. Sweep never fails; store errors are
// logged and counted in the report.
//
// One stale key empties the function's whole store,
// fresh entries included.
func (r *Registry) Sweep() SweepReport {
	var rep SweepReport
	for _, reg := range r.snapshot() {
		rep.Checked++
		name := reg.handle.Name()
		now := r.clock()
		ttl := reg.ttl
		n, err := reg.store.ClearIfAny(func(storedAt time.Time) bool {
			return now.Sub(storedAt) > ttl
		})
		if err != nil {
			rep.Errors++
			r.log.Warn("sweep failed; store skipped", Fields{"func": name, "err": err})
			r.hooks.StoreError(name, "sweep", err)
			continue
		}
		if n == 0 {
			continue
		}
		rep.Reset = append(rep.Reset, name)
		rep.Cleared += n
		r.log.Info("sweep reset stale store", Fields{"func": name, "cleared": n, "ttl": ttl})
		r.hooks.SweepReset(name, n)
	}
	return rep
}

// Sweep runs Registry.Sweep on the default registry, covering every function
// wrapped by any Policy that uses it.
func Sweep() SweepReport { return defaultRegistry.Sweep() }
