// Package registry implements the ordered, name-keyed store of pending
// entities for one content kind. Registries are engine-owned and survive
// host rebuilds; the injector drains them into the host's live tables on
// every rebuild notification.
package registry

import (
	"errors"
	"iter"

	"github.com/modforge/modforge/internal/core/identity"
	"github.com/modforge/modforge/internal/core/observability/log"
	"github.com/modforge/modforge/pkg/sequence"
)

// Entity is anything a registry can hold.
type Entity interface {
	Name() string
	Validate() error
}

// ErrDuplicate marks an Add of a name already present.
var ErrDuplicate = errors.New("registry: name already registered")

// CleanupFunc runs when an entity leaves the registry, for entity-specific
// teardown beyond dropping the entry itself.
type CleanupFunc[T Entity] func(T)

// Registry stores pending entities of one kind in insertion order. That
// order is the injection order: first registered, first applied. Callers
// must not rely on it for cross-entity references; those go through
// placeholder resolution instead.
//
// Removal is O(1): the order slice keeps stale names until it has grown to
// twice the live count, then compacts. Bulk drops during a failing
// injection pass therefore stay linear.
type Registry[T Entity] struct {
	kind    string
	entries map[string]T
	order   []string
	space   *identity.Space
	cleanup CleanupFunc[T]
	log     log.Log
}

// Option configures a Registry.
type Option[T Entity] func(*Registry[T])

// WithCleanup installs a cleanup hook invoked on every removal.
func WithCleanup[T Entity](fn CleanupFunc[T]) Option[T] {
	return func(r *Registry[T]) { r.cleanup = fn }
}

// New creates a registry for one entity kind. The identity space is shared
// across all registries so identifier collisions are caught engine-wide.
func New[T Entity](kind string, space *identity.Space, lg log.Log, opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{
		kind:    kind,
		entries: make(map[string]T),
		space:   space,
		log:     lg.Named(kind),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add validates and stores an entity. It returns false, without storing
// anything, when the entity is invalid, the name is already registered, or
// the name's identifier collides with a claim held by a different name.
// Add never panics and never throws; rejection is a log line plus false.
func (r *Registry[T]) Add(e T) bool {
	name := e.Name()
	if err := e.Validate(); err != nil {
		r.log.Warn("rejected invalid entity", log.String("name", name), log.Error(err))
		return false
	}
	if _, exists := r.entries[name]; exists {
		r.log.Warn("rejected duplicate entity", log.String("name", name), log.Error(ErrDuplicate))
		return false
	}
	id, err := r.space.Claim(name)
	if err != nil {
		r.log.Error("rejected entity on id collision", log.String("name", name), log.Error(err))
		return false
	}

	r.entries[name] = e
	r.order = append(r.order, name)
	r.log.Debug("registered entity", log.String("name", name), log.Uint32("id", uint32(id)))
	return true
}

// Get looks up an entity by name.
func (r *Registry[T]) Get(name string) (T, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Remove deletes the named entity, releases its identifier claim and runs
// the cleanup hook. Removal is the only reversal mechanism; there is no
// disabled state.
func (r *Registry[T]) Remove(name string) bool {
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	delete(r.entries, name)
	r.space.Release(name)
	if r.cleanup != nil {
		r.cleanup(e)
	}
	r.maybeCompact()
	r.log.Debug("removed entity", log.String("name", name))
	return true
}

// Len reports the number of registered entities.
func (r *Registry[T]) Len() int {
	return len(r.entries)
}

// Kind reports the registry's entity kind label.
func (r *Registry[T]) Kind() string {
	return r.kind
}

// All iterates entities in insertion order over a snapshot, so callers may
// Remove entries mid-iteration. The injector depends on this.
func (r *Registry[T]) All() iter.Seq[T] {
	snapshot := make([]T, 0, len(r.entries))
	for _, name := range r.order {
		if e, ok := r.entries[name]; ok {
			snapshot = append(snapshot, e)
		}
	}
	return sequence.From(snapshot).Seq()
}

func (r *Registry[T]) maybeCompact() {
	if len(r.order) <= 2*len(r.entries) || len(r.order) < 16 {
		return
	}
	live := r.order[:0]
	for _, name := range r.order {
		if _, ok := r.entries[name]; ok {
			live = append(live, name)
		}
	}
	r.order = live
}
