// Package host declares the contracts the foreign host application exposes
// to the engine. The host owns every structure described here; the engine
// only reads identifiers and appends under the add-if-absent contract. It
// never removes or overwrites host-native entries.
//
// Nothing in this package is implemented by the engine itself; memhost
// provides an in-memory implementation for tests and the demo driver.
package host

import "github.com/modforge/modforge/internal/core/identity"

// ObjectID is the opaque per-instance identity of a live host object. It is
// distinct from identity.ID: many live instances can share one definition.
type ObjectID string

// Object is an entry in one of the host's live tables.
type Object interface {
	ID() identity.ID
	Name() string
}

// Record is a minimal Object value for entries the engine appends itself.
type Record struct {
	Hash  identity.ID
	Label string
}

func (r Record) ID() identity.ID { return r.Hash }
func (r Record) Name() string    { return r.Label }

// Table is one of the host's live, identifier-keyed collections.
//
// Insert must reject an already-present identifier with an error; the
// engine relies on Contains to skip entries and treats a duplicate Insert
// as a bug, not a merge.
type Table interface {
	Contains(id identity.ID) bool
	Lookup(id identity.ID) (Object, bool)
	Insert(obj Object) error
	Len() int
}

// Stack is a named quantity inside an inventory-like container.
type Stack struct {
	Name  string `yaml:"name" json:"name"`
	Count int    `yaml:"count" json:"count"`
}

// Container is an inventory-like owner of stacks. Live is the current
// in-memory state; Native is what the host's own save format captured for
// this owner (extension-defined stacks are missing from it). Merge adds a
// stack into live state, summing counts for an existing name.
type Container interface {
	Owner() string
	Live() []Stack
	Native() []Stack
	Merge(s Stack)
}

// ConversionKind tags the four host subsystems that hold conversion lists.
type ConversionKind uint8

const (
	ConversionFabricator ConversionKind = iota
	ConversionRecycler
	ConversionSmelter
	ConversionComposter
)

func (k ConversionKind) String() string {
	switch k {
	case ConversionFabricator:
		return "fabricator"
	case ConversionRecycler:
		return "recycler"
	case ConversionSmelter:
		return "smelter"
	case ConversionComposter:
		return "composter"
	default:
		return "unknown"
	}
}

// ConversionEntry is one input-to-output rule inside a conversion subsystem.
type ConversionEntry struct {
	Input  identity.ID
	Output identity.ID
	Ratio  int
}

// ConversionSystem is one host subsystem's conversion list. Append never
// deduplicates; duplicate detection is the engine's job because the match
// key differs per subsystem.
type ConversionSystem interface {
	Kind() ConversionKind
	Entries() []ConversionEntry
	Append(e ConversionEntry) error
}

// Host aggregates the live collections the engine reconciles into.
//
// Items, Effects and Spawns are definition tables keyed by identity.ID.
// Recipes holds derived recipe entries, Known the set of recipes unlocked
// for the active actor. Conversions exposes one subsystem per kind.
type Host interface {
	Items() Table
	Effects() Table
	Spawns() Table
	Recipes() Table
	Known() Table
	Conversions(kind ConversionKind) (ConversionSystem, bool)
}
