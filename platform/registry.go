package platform

import (
	"sort"
	"sync"
)

// Registry maps platform names to their Uploader implementations. It is the
// explicit collaborator bundle handed to the dispatch executor, so tests can
// register doubles instead of reaching for shared globals.
type Registry struct {
	mu        sync.RWMutex
	uploaders map[string]Uploader
}

// NewRegistry creates an empty uploader registry
func NewRegistry() *Registry {
	return &Registry{uploaders: make(map[string]Uploader)}
}

// Register adds or replaces the uploader for a platform
func (r *Registry) Register(name string, u Uploader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaders[name] = u
}

// Get returns the uploader for a platform
func (r *Registry) Get(name string) (Uploader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.uploaders[name]
	return u, ok
}

// Names returns the registered platform names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.uploaders))
	for name := range r.uploaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
