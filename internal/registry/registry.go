// Package registry holds the process-wide collection of configured
// Syncs (spec.md §2 "Syncs Registry"). In the teacher's own terms this
// replaces the original's global Lua table of syncs with an explicit,
// constructed value — the "global mutable singletons" rearchitecture
// spec.md §9 asks for: the host runtime owns exactly one Registry,
// passes it to the Dispatcher, and adds each of its Syncs to the Watch
// Manager.
package registry

import "github.com/lipengyu/lsyncd/internal/mirror"

// Registry is the ordered collection of all configured Syncs.
type Registry struct {
	syncs []*mirror.Sync
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add registers a Sync. Syncs are appended in configuration order, which
// All preserves.
func (r *Registry) Add(s *mirror.Sync) {
	r.syncs = append(r.syncs, s)
}

// All returns every registered Sync, in registration order. Callers must
// not mutate the returned slice.
func (r *Registry) All() []*mirror.Sync {
	return r.syncs
}

// Len reports how many Syncs are registered.
func (r *Registry) Len() int {
	return len(r.syncs)
}
