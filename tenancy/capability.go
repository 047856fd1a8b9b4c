package tenancy

// Capability is the per-route metadata record the middleware reads: whether
// the route is public (bypasses identity resolution entirely) and its tenancy
// requirement. Capabilities are attached when routes are registered and are
// plain data at request time.
type Capability struct {
	Public      bool
	Requirement Requirement
}

// Registry maps route patterns to capabilities. It is populated during route
// registration, before the server accepts traffic, and read-only afterwards,
// so lookups need no locking.
type Registry struct {
	routes map[string]Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]Capability)}
}

// Register attaches a capability to a route pattern.
func (r *Registry) Register(pattern string, capability Capability) {
	r.routes[pattern] = capability
}

// Lookup returns the capability for a pattern. Unregistered routes get the
// zero capability: not public, no tenancy requirement.
func (r *Registry) Lookup(pattern string) Capability {
	return r.routes[pattern]
}
