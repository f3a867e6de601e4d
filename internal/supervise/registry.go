package supervise

import "fmt"

// Registry holds one Controller per managed service. Services are fully
// independent; the registry carries no cross-service coordination, it only
// exposes the controllers to the UI layer in a stable order.
type Registry struct {
	order       []string
	controllers map[string]*Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Add registers a controller. Registration happens once at startup, before
// any operation runs, so no locking is needed.
func (r *Registry) Add(c *Controller) {
	name := c.Name()
	if _, ok := r.controllers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.controllers[name] = c
}

// Get resolves a controller by service name.
func (r *Registry) Get(name string) (*Controller, error) {
	c, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownService)
	}
	return c, nil
}

// Names lists the registered services in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Statuses snapshots every controller in registration order.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.controllers[name].Status())
	}
	return out
}
