package source

// Registry is the process-scoped mapping from source name to adapter. It is
// constructed once at startup from the enabled config sections and passed by
// reference to the orchestration code; registration order is the order
// sources are synced, analyzed and rendered.
type Registry struct {
	order    []Type
	adapters map[Type]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Type]Adapter)}
}

// Register adds an adapter. Re-registering a name replaces the adapter but
// keeps its original position.
func (r *Registry) Register(a Adapter) {
	name := a.Name()
	if _, ok := r.adapters[name]; !ok {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name Type) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []Type {
	out := make([]Type, len(r.order))
	copy(out, r.order)
	return out
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}
