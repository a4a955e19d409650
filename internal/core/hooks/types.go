// Package hooks binds engine entry points to host lifecycle notifications.
//
// Key characteristics:
//   - Deterministic ordering: each notification has an explicitly ordered
//     listener list; dispatch runs ascending by priority, insertion order
//     within equal priority.
//   - Synchronous delivery: Emit calls every handler on the caller's
//     goroutine and returns only when all have run. The engine is
//     single-threaded by contract, so there is no locking.
//   - Error isolation: a handler error is logged and aggregated; it never
//     prevents later handlers from running.
package hooks

import "time"

// Notification names a host lifecycle moment, or one the engine produces
// for downstream listeners.
type Notification string

// Notifications consumed from the host.
const (
	// PreDatabaseRebuild fires before the host copies its native database.
	PreDatabaseRebuild Notification = "database.rebuild.pre"
	// PostDatabaseRebuild fires after the copy; injection runs here. It can
	// fire any number of times over a process lifetime.
	PostDatabaseRebuild Notification = "database.rebuild.post"
	// ActorSpawned fires after a player-like actor becomes active.
	ActorSpawned    Notification = "actor.spawned"
	ObjectSpawned   Notification = "object.spawned"
	ObjectDestroyed Notification = "object.destroyed"
	InventorySaved  Notification = "inventory.saved"
	InventoryLoaded Notification = "inventory.loaded"
)

// Notifications produced by the engine.
const (
	// RegistrationComplete fires once per PostDatabaseRebuild, after all
	// kinds have been injected. Its payload is the injection report.
	RegistrationComplete Notification = "registration.complete"
	// LegacyVanillaDataAvailable fires once per rebuild before injection.
	//
	// Deprecated: retained for compatibility with listeners of earlier
	// releases; subscribe to PreDatabaseRebuild instead.
	LegacyVanillaDataAvailable Notification = "legacy.vanilla.available"
)

// Priorities. Listeners at equal priority run in subscription order. The
// engine's own bookkeeping subscribes at PriorityLate so that third-party
// listeners of the same notification always run first.
const (
	PriorityFirst   = -1 << 10
	PriorityDefault = 0
	PriorityLate    = 1 << 10
)

// Event is what a handler receives.
type Event struct {
	Notification Notification
	Data         any
	At           time.Time
}

// Handler is a listener callback. A returned error is logged and
// aggregated by Emit but never stops dispatch.
type Handler func(Event) error
