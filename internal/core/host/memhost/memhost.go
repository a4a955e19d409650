// Package memhost is a complete in-memory implementation of the host
// contracts. Tests and the demo driver use it as the foreign application:
// it owns its tables, enforces add-if-absent, and can destroy and rebuild
// itself from native content the way a real host does on session start.
package memhost

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/identity"
)

// Host is the in-memory host. Not safe for concurrent use; the engine's
// execution model is single-threaded.
type Host struct {
	items   *Table
	effects *Table
	spawns  *Table
	recipes *Table
	known   *Table

	conversions map[host.ConversionKind]*ConversionSystem
	containers  map[string]*Container

	native []string
}

var _ host.Host = (*Host)(nil)

func New() *Host {
	h := &Host{
		containers: make(map[string]*Container),
	}
	h.reset()
	return h
}

func (h *Host) reset() {
	h.items = NewTable("items")
	h.effects = NewTable("effects")
	h.spawns = NewTable("spawns")
	h.recipes = NewTable("recipes")
	h.known = NewTable("known")
	h.conversions = map[host.ConversionKind]*ConversionSystem{
		host.ConversionFabricator: {kind: host.ConversionFabricator},
		host.ConversionRecycler:   {kind: host.ConversionRecycler},
		host.ConversionSmelter:    {kind: host.ConversionSmelter},
		host.ConversionComposter:  {kind: host.ConversionComposter},
	}
	for _, name := range h.native {
		_ = h.items.Insert(host.Record{Hash: identity.Hash(name), Label: name})
	}
}

// SeedNative declares host-native item names. They are present in the
// items table immediately and again after every Rebuild.
func (h *Host) SeedNative(names ...string) {
	h.native = append(h.native, names...)
	for _, name := range names {
		id := identity.Hash(name)
		if !h.items.Contains(id) {
			_ = h.items.Insert(host.Record{Hash: id, Label: name})
		}
	}
}

// Rebuild discards every live table and reconstructs them from native
// content only, simulating the host's destroy-and-rebuild cycle.
// Containers survive; they belong to the session save, not the database.
func (h *Host) Rebuild() {
	h.reset()
}

func (h *Host) Items() host.Table   { return h.items }
func (h *Host) Effects() host.Table { return h.effects }
func (h *Host) Spawns() host.Table  { return h.spawns }
func (h *Host) Recipes() host.Table { return h.recipes }
func (h *Host) Known() host.Table   { return h.known }

func (h *Host) Conversions(kind host.ConversionKind) (host.ConversionSystem, bool) {
	sys, ok := h.conversions[kind]
	return sys, ok
}

// NewObjectID mints an instance identity for a spawned live object.
func NewObjectID() host.ObjectID {
	return host.ObjectID(uuid.NewString())
}

// Container returns the container for an owner, creating it on first use.
func (h *Host) Container(owner string) *Container {
	c, ok := h.containers[owner]
	if !ok {
		c = &Container{owner: owner}
		h.containers[owner] = c
	}
	return c
}

// Table is an identifier-keyed live collection with add-if-absent
// semantics. Insertion order is preserved for deterministic iteration.
type Table struct {
	name    string
	entries map[identity.ID]host.Object
	order   []identity.ID
}

var _ host.Table = (*Table)(nil)

func NewTable(name string) *Table {
	return &Table{
		name:    name,
		entries: make(map[identity.ID]host.Object),
	}
}

func (t *Table) Contains(id identity.ID) bool {
	_, ok := t.entries[id]
	return ok
}

func (t *Table) Lookup(id identity.ID) (host.Object, bool) {
	obj, ok := t.entries[id]
	return obj, ok
}

func (t *Table) Insert(obj host.Object) error {
	if _, ok := t.entries[obj.ID()]; ok {
		return fmt.Errorf("memhost: %s table already contains %#08x (%s)", t.name, uint32(obj.ID()), obj.Name())
	}
	t.entries[obj.ID()] = obj
	t.order = append(t.order, obj.ID())
	return nil
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Objects returns the table contents in insertion order.
func (t *Table) Objects() []host.Object {
	out := make([]host.Object, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id])
	}
	return out
}

// ConversionSystem is one subsystem's conversion list.
type ConversionSystem struct {
	kind    host.ConversionKind
	entries []host.ConversionEntry
}

var _ host.ConversionSystem = (*ConversionSystem)(nil)

func (s *ConversionSystem) Kind() host.ConversionKind { return s.kind }

func (s *ConversionSystem) Entries() []host.ConversionEntry {
	out := make([]host.ConversionEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *ConversionSystem) Append(e host.ConversionEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

// Container is an inventory-like owner of stacks.
type Container struct {
	owner  string
	live   []host.Stack
	native []host.Stack
}

var _ host.Container = (*Container)(nil)

func (c *Container) Owner() string { return c.owner }

func (c *Container) Live() []host.Stack {
	out := make([]host.Stack, len(c.live))
	copy(out, c.live)
	return out
}

func (c *Container) Native() []host.Stack {
	out := make([]host.Stack, len(c.native))
	copy(out, c.native)
	return out
}

func (c *Container) Merge(s host.Stack) {
	for i := range c.live {
		if c.live[i].Name == s.Name {
			c.live[i].Count += s.Count
			return
		}
	}
	c.live = append(c.live, s)
}

// SetLive replaces the container's live stacks.
func (c *Container) SetLive(stacks ...host.Stack) {
	c.live = append(c.live[:0:0], stacks...)
}

// NativeSave simulates the host's own save pass: it captures into the
// native snapshot only the stacks whose names the nativeKnown predicate
// accepts, mirroring a native format that cannot serialize extension items.
func (c *Container) NativeSave(nativeKnown func(name string) bool) {
	c.native = c.native[:0]
	for _, s := range c.live {
		if nativeKnown(s.Name) {
			c.native = append(c.native, s)
		}
	}
}

// NativeLoad simulates the host's own load pass: live state becomes the
// native snapshot.
func (c *Container) NativeLoad() {
	c.live = append(c.live[:0:0], c.native...)
}
