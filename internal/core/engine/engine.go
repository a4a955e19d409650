// Package engine assembles the registration machinery and binds it to the
// host's lifecycle notifications. One Engine instance owns one registry
// per content kind, the shared identity space, the injector, the auxiliary
// side table and the save side channel.
//
// All engine bookkeeping subscribes at hooks.PriorityLate, so third-party
// listeners of the same notifications always run first and, when they
// react to RegistrationComplete, observe fully-injected state.
package engine

import (
	"github.com/modforge/modforge/internal/core/content"
	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/identity"
	"github.com/modforge/modforge/internal/core/inject"
	"github.com/modforge/modforge/internal/core/observability/log"
	"github.com/modforge/modforge/internal/core/registry"
	"github.com/modforge/modforge/internal/core/resolve"
	"github.com/modforge/modforge/internal/core/sidechannel"
	"github.com/modforge/modforge/internal/core/sidetable"
)

// Config carries the engine's construction parameters.
type Config struct {
	// SideChannelDir is the directory holding per-owner side files.
	SideChannelDir string
}

// Engine is the registration-and-reconciliation service object. It is
// engine-owned state layered over a host it never controls; the host's
// database may be destroyed and rebuilt arbitrarily often underneath it.
type Engine struct {
	host       host.Host
	dispatcher *hooks.Dispatcher
	space      *identity.Space

	items       *registry.Registry[*content.Item]
	effects     *registry.Registry[*content.Effect]
	spawns      *registry.Registry[*content.Spawn]
	conversions *registry.Registry[*content.Conversion]

	injector *inject.Injector
	aux      *sidetable.Table[any]
	channel  *sidechannel.Channel

	subs     []*hooks.Subscription
	rebuilds int
	log      log.Log
}

// New constructs an Engine and binds it to the dispatcher. Call Close to
// unbind.
func New(h host.Host, d *hooks.Dispatcher, lg log.Log, cfg Config) *Engine {
	e := &Engine{
		host:       h,
		dispatcher: d,
		space:      identity.NewSpace(),
		log:        lg.Named("engine"),
	}

	e.items = registry.New[*content.Item]("items", e.space, lg)
	e.effects = registry.New[*content.Effect]("effects", e.space, lg)
	e.spawns = registry.New[*content.Spawn]("spawns", e.space, lg)
	e.conversions = registry.New[*content.Conversion]("conversions", e.space, lg)

	resolver := resolve.New(h)
	resolver.Bind(content.KindItem, e.items)
	resolver.Bind(content.KindEffect, e.effects)
	resolver.Bind(content.KindSpawn, e.spawns)
	resolver.Bind(content.KindConversion, e.conversions)

	e.injector = inject.New(h, resolver, e.items, e.effects, e.spawns, e.conversions, lg)
	e.aux = sidetable.New[any](lg)
	e.channel = sidechannel.New(cfg.SideChannelDir, e.isManaged, lg)

	e.bind()
	return e
}

// Registries, for extension-facing registration calls.

func (e *Engine) Items() *registry.Registry[*content.Item]             { return e.items }
func (e *Engine) Effects() *registry.Registry[*content.Effect]         { return e.effects }
func (e *Engine) Spawns() *registry.Registry[*content.Spawn]           { return e.spawns }
func (e *Engine) Conversions() *registry.Registry[*content.Conversion] { return e.conversions }

// Aux is the per-instance auxiliary state table. Entries are released
// when the host destroys their owner.
func (e *Engine) Aux() *sidetable.Table[any] { return e.aux }

// Register adds every record of a loaded bundle. It returns how many were
// accepted; rejected records are logged by their registries.
func (e *Engine) Register(b *content.Bundle) int {
	accepted := 0
	for _, item := range b.Items {
		if e.items.Add(item) {
			accepted++
		}
	}
	for _, effect := range b.Effects {
		if e.effects.Add(effect) {
			accepted++
		}
	}
	for _, spawn := range b.Spawns {
		if e.spawns.Add(spawn) {
			accepted++
		}
	}
	for _, conv := range b.Conversions {
		if e.conversions.Add(conv) {
			accepted++
		}
	}
	return accepted
}

// Close cancels every lifecycle subscription the engine holds.
func (e *Engine) Close() {
	for _, s := range e.subs {
		s.Cancel()
	}
	e.subs = nil
}

func (e *Engine) bind() {
	e.subscribe(hooks.PreDatabaseRebuild, e.onPreRebuild)
	e.subscribe(hooks.PostDatabaseRebuild, e.onPostRebuild)
	e.subscribe(hooks.ActorSpawned, e.onActorSpawned)
	e.subs = append(e.subs, e.aux.Bind(e.dispatcher))
	e.subs = append(e.subs, e.channel.Bind(e.dispatcher)...)
}

func (e *Engine) subscribe(n hooks.Notification, h hooks.Handler) {
	e.subs = append(e.subs, e.dispatcher.Subscribe(n, hooks.PriorityLate, h))
}

func (e *Engine) onPreRebuild(hooks.Event) error {
	// Kept for listeners of earlier releases that expect vanilla data
	// before the injection pass.
	return e.dispatcher.Emit(hooks.LegacyVanillaDataAvailable, nil)
}

func (e *Engine) onPostRebuild(hooks.Event) error {
	e.rebuilds++
	report := e.injector.Run()
	e.log.Info("registration complete",
		log.Int("rebuild", e.rebuilds),
		log.Int("injected", report.Injected()),
		log.Int("skipped", report.Skipped()),
		log.Int("dropped", report.Dropped()),
	)
	return e.dispatcher.Emit(hooks.RegistrationComplete, report)
}

func (e *Engine) onActorSpawned(hooks.Event) error {
	unlocked := e.injector.RefreshKnown()
	if unlocked > 0 {
		e.log.Debug("unlocked recipes for actor", log.Int("count", unlocked))
	}
	return nil
}

// isManaged reports whether a stack name belongs to an engine-registered
// entity, as opposed to host-native content.
func (e *Engine) isManaged(name string) bool {
	return e.items.Has(name) || e.effects.Has(name) || e.spawns.Has(name)
}
