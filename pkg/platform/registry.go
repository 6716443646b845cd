package platform

import (
	"fmt"

	"profilegrab/pkg/models"
)

// Registry maps platforms to their adapters
type Registry struct {
	adapters map[models.Platform]Adapter
	order    []models.Platform
}

// NewRegistry registers adapters; a later adapter for the same platform wins
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Platform]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	p := a.Platform()
	if _, ok := r.adapters[p]; !ok {
		r.order = append(r.order, p)
	}
	r.adapters[p] = a
}

// Get returns the adapter for p
func (r *Registry) Get(p models.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}

// Platforms lists registered platforms in registration order
func (r *Registry) Platforms() []models.Platform {
	return append([]models.Platform(nil), r.order...)
}
