// Package registry keeps the set of data sources known to one process.
package registry

import (
	"sort"
	"sync"
)

type Registry struct {
	mu      sync.RWMutex
	sources map[string]Descriptor
}

func New() *Registry {
	return &Registry{sources: map[string]Descriptor{}}
}

// Register adds d, replacing any source with the same id.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[d.ID] = d
	return nil
}

func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.sources[id]
	return d, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sources[id]
	delete(r.sources, id)
	return ok
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sources)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = map[string]Descriptor{}
}

// All returns every source ordered by tier, then id.
func (r *Registry) All() []Descriptor {
	return r.filter(func(Descriptor) bool { return true })
}

func (r *Registry) ByTier(tier Tier) []Descriptor {
	return r.filter(func(d Descriptor) bool { return d.Tier == tier })
}

// Dependents returns the sources that list id in DependsOn.
func (r *Registry) Dependents(id string) []Descriptor {
	return r.filter(func(d Descriptor) bool {
		for _, dep := range d.DependsOn {
			if dep == id {
				return true
			}
		}
		return false
	})
}

func (r *Registry) filter(keep func(Descriptor) bool) []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.sources))
	for _, d := range r.sources {
		if keep(d) {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].ID < out[j].ID
	})
	return out
}
