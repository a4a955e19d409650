// Package resolve turns placeholder references into stable identifiers at
// injection time. Resolution is lazy by design: an entity may refer to
// another entity that does not exist yet when it is registered, including
// forward references across kinds and registration order.
package resolve

import (
	"errors"
	"fmt"

	"github.com/modforge/modforge/internal/core/content"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/identity"
)

// ErrUnresolved marks a reference neither a registry nor the host's native
// tables can satisfy. It fails only the referencing entity.
var ErrUnresolved = errors.New("resolve: unresolved reference")

// Source is the registry surface the resolver consults: pending entities
// of one kind, by exact name.
type Source interface {
	Has(name string) bool
}

// Resolver resolves references by consulting, in order, the registry of
// the matching kind and then the host's own table via the name hash.
type Resolver struct {
	sources map[content.Kind]Source
	host    host.Host
}

func New(h host.Host) *Resolver {
	return &Resolver{
		sources: make(map[content.Kind]Source),
		host:    h,
	}
}

// Bind attaches the registry for one kind.
func (r *Resolver) Bind(kind content.Kind, src Source) {
	r.sources[kind] = src
}

// Resolve returns the stable identifier the reference points at.
//
// A pending registry entry resolves to its claimed identifier even before
// it has been injected; the identifier is valid as soon as injection of
// the current pass completes. A host-native object must match the exact
// name after the hash lookup.
func (r *Resolver) Resolve(ref content.Reference) (identity.ID, error) {
	if ref.IsZero() {
		return 0, fmt.Errorf("%w: empty reference", ErrUnresolved)
	}
	if src, ok := r.sources[ref.Kind]; ok && src.Has(ref.Name) {
		return identity.Hash(ref.Name), nil
	}

	id := identity.Hash(ref.Name)
	if table := r.tableFor(ref.Kind); table != nil {
		if obj, ok := table.Lookup(id); ok && obj.Name() == ref.Name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnresolved, ref)
}

func (r *Resolver) tableFor(kind content.Kind) host.Table {
	switch kind {
	case content.KindItem:
		return r.host.Items()
	case content.KindEffect:
		return r.host.Effects()
	case content.KindSpawn:
		return r.host.Spawns()
	default:
		// Conversions are list entries, not identifier-keyed objects; only
		// a registry can satisfy a conversion reference.
		return nil
	}
}
