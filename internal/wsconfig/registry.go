// Package wsconfig binds URL paths to handler descriptors and loads the
// per-path directives (payload limit, negotiated version) from flags, env
// vars, and an optional TOML file — the CLI/config surface described as
// "delegated" in §6, given one concrete, swappable implementation.
package wsconfig

import (
	"fmt"
	"sync"

	"github.com/tessera-io/wscore/wscore"
)

// Directive is the per-path configuration a host's directive binds, per
// §6: "a directive binds a URL path/location to a handler."
type Directive struct {
	Path         string
	PayloadLimit uint64
	Version      string
	Descriptor   wscore.Descriptor
}

// Registry holds process-wide, load-once directives. Per spec.md §9's
// "Global state" note, descriptors are immutable after Bind and outlive
// all sessions using them; Registry enforces that with a reference count
// per path instead of a true dynamic loader, matching the "unload only at
// shutdown" policy the note recommends as sufficient.
type Registry struct {
	mu     sync.Mutex
	byPath map[string]*entry
}

type entry struct {
	directive Directive
	refs      int
	unloaded  bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byPath: make(map[string]*entry)}
}

// Bind registers a directive for path. Binding the same path twice is a
// configuration error: directives are immutable once loaded.
func (r *Registry) Bind(d Directive) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[d.Path]; exists {
		return fmt.Errorf("wsconfig: path %q already bound", d.Path)
	}
	r.byPath[d.Path] = &entry{directive: d}
	return nil
}

// Acquire looks up the directive bound to path and increments its
// reference count; call Release when the session using it ends. Acquire
// fails if the path was never bound or has already been unloaded.
func (r *Registry) Acquire(path string) (Directive, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byPath[path]
	if !ok || e.unloaded {
		return Directive{}, false
	}
	e.refs++
	return e.directive, true
}

// Release decrements path's reference count.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byPath[path]; ok && e.refs > 0 {
		e.refs--
	}
}

// Unload marks path's directive as no longer acquirable by new sessions,
// effective immediately whatever the reference count. It does not forcibly
// disconnect sessions already holding a reference, leaves their count
// untouched, and never removes the entry from the registry, so the
// directive stays valid for every session still using it.
func (r *Registry) Unload(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byPath[path]; ok {
		e.unloaded = true
	}
}

// RefCount reports the current reference count for path, for diagnostics.
func (r *Registry) RefCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byPath[path]; ok {
		return e.refs
	}
	return 0
}
