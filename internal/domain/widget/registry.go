package widget

import (
	"sync"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
)

// Registry maps containers to the controller running in them, so a
// container never hosts more than one live sandbox.
type Registry struct {
	mu          sync.Mutex
	controllers map[*surface.Container]*Controller
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[*surface.Container]*Controller)}
}

// Register records c as the controller for container, stopping whichever
// controller held it before.
func (r *Registry) Register(container *surface.Container, c *Controller) {
	r.mu.Lock()
	prev := r.controllers[container]
	r.controllers[container] = c
	r.mu.Unlock()

	if prev != nil && prev != c {
		prev.Stop()
	}
}

// Unregister stops and forgets c if it is still the container's
// controller. It reports whether it was.
func (r *Registry) Unregister(container *surface.Container, c *Controller) bool {
	r.mu.Lock()
	cur, ok := r.controllers[container]
	if ok && cur == c {
		delete(r.controllers, container)
	}
	r.mu.Unlock()

	c.Stop()
	return ok && cur == c
}

// Lookup returns the controller registered for container
func (r *Registry) Lookup(container *surface.Container) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[container]
	return c, ok
}

// Len returns the number of registered containers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// StopAll stops every registered controller
func (r *Registry) StopAll() {
	r.mu.Lock()
	all := make([]*Controller, 0, len(r.controllers))
	for container, c := range r.controllers {
		all = append(all, c)
		delete(r.controllers, container)
	}
	r.mu.Unlock()

	for _, c := range all {
		c.Stop()
	}
}
