package driver

import (
	"fmt"
	"sync"

	"github.com/hazyhaar/autobuy/platform"
)

type key struct {
	id   platform.ID
	tier platform.Tier
}

// Registry maps a platform and a tier to its driver. Tier selection
// happens once, from the capability registry; the orchestrator never
// branches on platform ids.
type Registry struct {
	mu      sync.RWMutex
	drivers map[key]Driver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[key]Driver)}
}

// Defaults builds a registry with one driver per tier each registered
// platform supports. overrides replaces individual selector fields per
// platform.
func Defaults(overrides map[platform.ID]Selectors, agents []PurchasingAgent) *Registry {
	r := NewRegistry()
	for _, id := range platform.All() {
		c := platform.CapabilitiesOf(id)
		sel := SelectorsFor(id, overrides[id])
		if c.FullAuto {
			r.Register(&FullAuto{ID: id, Sel: sel})
		}
		if c.SemiAuto {
			r.Register(&SemiAuto{ID: id, Sel: sel})
		}
		if c.NeedsAgent {
			r.Register(&Agent{ID: id, Agents: agents})
		}
	}
	return r
}

// Register adds or replaces the driver for d's platform and tier.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	r.drivers[key{d.Platform(), d.Tier()}] = d
	r.mu.Unlock()
}

// Lookup returns the driver for id at tier.
func (r *Registry) Lookup(id platform.ID, tier platform.Tier) (Driver, error) {
	r.mu.RLock()
	d, ok := r.drivers[key{id, tier}]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrNoDriver{Platform: id, Tier: tier}
	}
	return d, nil
}

// StatusChecker returns the first registered driver of id able to read
// order status.
func (r *Registry) StatusChecker(id platform.ID) (StatusChecker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tier := range []platform.Tier{platform.TierFull, platform.TierSemi, platform.TierAgent} {
		if sc, ok := r.drivers[key{id, tier}].(StatusChecker); ok {
			return sc, true
		}
	}
	return nil, false
}

// ErrNoDriver is returned when no driver is registered for a platform and
// tier.
type ErrNoDriver struct {
	Platform platform.ID
	Tier     platform.Tier
}

func (e *ErrNoDriver) Error() string {
	return fmt.Sprintf("driver: no %s driver for %s", e.Tier, e.Platform)
}
