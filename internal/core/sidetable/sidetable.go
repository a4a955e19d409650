// Package sidetable associates auxiliary extension-owned state with live
// host objects without controlling their lifetime. An association lives
// exactly as long as its owner: release happens synchronously from the
// owner's destruction notification, never from a finalizer or a sweep, so
// a lookup after the destruction notification is deterministically absent.
package sidetable

import (
	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/observability/log"
)

// Table maps a live host object to extension state of type V.
type Table[V any] struct {
	entries map[host.ObjectID]V
	log     log.Log
}

func New[V any](lg log.Log) *Table[V] {
	return &Table[V]{
		entries: make(map[host.ObjectID]V),
		log:     lg.Named("sidetable"),
	}
}

// Associate stores state for the owner, replacing any previous value.
func (t *Table[V]) Associate(owner host.ObjectID, v V) {
	t.entries[owner] = v
}

// Lookup returns the state associated with the owner, if any.
func (t *Table[V]) Lookup(owner host.ObjectID) (V, bool) {
	v, ok := t.entries[owner]
	return v, ok
}

// Release drops the owner's association. Returns false when none existed.
func (t *Table[V]) Release(owner host.ObjectID) bool {
	if _, ok := t.entries[owner]; !ok {
		return false
	}
	delete(t.entries, owner)
	return true
}

// Len reports the number of live associations.
func (t *Table[V]) Len() int {
	return len(t.entries)
}

// Bind subscribes the table to ObjectDestroyed so owners are released the
// moment the host tears them down. Registered late so third-party
// listeners of the same notification can still read the association.
func (t *Table[V]) Bind(d *hooks.Dispatcher) *hooks.Subscription {
	return d.Subscribe(hooks.ObjectDestroyed, hooks.PriorityLate, func(e hooks.Event) error {
		owner, ok := e.Data.(host.ObjectID)
		if !ok {
			t.log.Warn("object destroyed with unexpected payload", log.Any("payload", e.Data))
			return nil
		}
		if t.Release(owner) {
			t.log.Debug("released association", log.String("owner", string(owner)))
		}
		return nil
	})
}
