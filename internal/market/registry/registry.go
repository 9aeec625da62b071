// Package registry owns the fixed set of backend adapters and their paired
// rate limiters. It is built once at startup and never mutated afterwards;
// test fixtures pass a reduced adapter set through the same constructor.
package registry

import (
	"marketdata/internal/market"
	"marketdata/internal/market/ratelimit"
)

type Registry struct {
	order    []market.BackendID
	adapters map[market.BackendID]market.Adapter
	limiters map[market.BackendID]*ratelimit.Limiter
}

// New pairs each adapter with a fresh limiter seeded from the backend's
// static budget. A duplicate BackendID keeps the first registration so the
// one-entry-per-identity invariant holds.
func New(adapters ...market.Adapter) *Registry {
	r := &Registry{
		adapters: make(map[market.BackendID]market.Adapter, len(adapters)),
		limiters: make(map[market.BackendID]*ratelimit.Limiter, len(adapters)),
	}
	for _, a := range adapters {
		id := a.ID()
		if _, dup := r.adapters[id]; dup {
			continue
		}
		r.adapters[id] = a
		r.limiters[id] = ratelimit.New(market.BudgetFor(id))
		r.order = append(r.order, id)
	}
	return r
}

// Lookup returns the adapter for id, if registered.
func (r *Registry) Lookup(id market.BackendID) (market.Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// Limiter returns the rate limiter paired with id, if registered.
func (r *Registry) Limiter(id market.BackendID) (*ratelimit.Limiter, bool) {
	l, ok := r.limiters[id]
	return l, ok
}

// All returns the adapters in registration order.
func (r *Registry) All() []market.Adapter {
	out := make([]market.Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// IDs returns the registered identities in registration order.
func (r *Registry) IDs() []market.BackendID {
	return append([]market.BackendID(nil), r.order...)
}

// HasCredentials reports whether the backend can authenticate. The demo
// identity never needs credentials.
func (r *Registry) HasCredentials(id market.BackendID) bool {
	if id == market.BackendDemo {
		return true
	}
	a, ok := r.adapters[id]
	if !ok {
		return false
	}
	return a.HasCredentials()
}
