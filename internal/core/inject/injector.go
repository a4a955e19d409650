// Package inject reconciles the engine's registries into the host's live
// tables on every database rebuild. The pass is idempotent: entities
// already present under their identifier are skipped, and one-time fix-ups
// never re-run once they have succeeded. Failures are contained per
// entity; a pass always covers every registry in full.
package inject

import (
	"fmt"

	"github.com/modforge/modforge/internal/core/content"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/identity"
	"github.com/modforge/modforge/internal/core/observability/log"
	"github.com/modforge/modforge/internal/core/registry"
	"github.com/modforge/modforge/internal/core/resolve"
)

// Injector runs the reconciliation pass.
type Injector struct {
	host     host.Host
	resolver *resolve.Resolver

	items       *registry.Registry[*content.Item]
	effects     *registry.Registry[*content.Effect]
	spawns      *registry.Registry[*content.Spawn]
	conversions *registry.Registry[*content.Conversion]

	log log.Log
}

func New(
	h host.Host,
	resolver *resolve.Resolver,
	items *registry.Registry[*content.Item],
	effects *registry.Registry[*content.Effect],
	spawns *registry.Registry[*content.Spawn],
	conversions *registry.Registry[*content.Conversion],
	lg log.Log,
) *Injector {
	return &Injector{
		host:        h,
		resolver:    resolver,
		items:       items,
		effects:     effects,
		spawns:      spawns,
		conversions: conversions,
		log:         lg.Named("inject"),
	}
}

// Run executes one full pass over all registries, in kind order: items
// first (conversions and effects may reference them), then effects, spawns
// and conversions. It always completes; per-entity failures are logged,
// the entity is permanently removed from its registry, and the pass moves
// on.
func (inj *Injector) Run() *Report {
	report := &Report{}
	inj.runItems(report)
	inj.runEffects(report)
	inj.runSpawns(report)
	inj.runConversions(report)

	inj.log.Info("injection pass complete",
		log.Int("injected", report.Injected()),
		log.Int("skipped", report.Skipped()),
		log.Int("dropped", report.Dropped()),
	)
	return report
}

// RefreshKnown unlocks recipes flagged unlock-at-start for the active
// actor. Idempotent; runs on every actor spawn.
func (inj *Injector) RefreshKnown() int {
	count := 0
	for item := range inj.items.All() {
		if item.Recipe == nil || !item.Recipe.UnlockAtStart {
			continue
		}
		id := identity.Hash(item.Name())
		if !inj.host.Recipes().Contains(id) || inj.host.Known().Contains(id) {
			continue
		}
		if err := inj.host.Known().Insert(host.Record{Hash: id, Label: item.Name()}); err != nil {
			inj.log.Warn("recipe unlock failed", log.String("name", item.Name()), log.Error(err))
			continue
		}
		count++
	}
	return count
}

func (inj *Injector) runItems(report *Report) {
	for item := range inj.items.All() {
		name := item.Name()
		id := identity.Hash(name)
		if done, err := inj.presence(inj.host.Items(), id, name); err != nil {
			inj.drop(report, "item", name, err, inj.items.Remove)
			continue
		} else if done {
			report.record("item", name, OutcomeSkipped, nil)
			continue
		}
		if err := guard(func() error { return inj.injectItem(item, id) }); err != nil {
			inj.drop(report, "item", name, err, inj.items.Remove)
			continue
		}
		report.record("item", name, OutcomeInjected, nil)
	}
}

func (inj *Injector) injectItem(item *content.Item, id identity.ID) error {
	if item.Fix.NeedsReferenceFix {
		if err := inj.fixItemReferences(item); err != nil {
			return err
		}
		item.Fix.NeedsReferenceFix = false
	}
	if item.Fix.NeedsConfigFix {
		if item.StackSize == 0 {
			item.StackSize = 1
		}
		item.Fix.NeedsConfigFix = false
	}

	// The derived entry is fully built before anything is written, so a
	// resolution failure leaves the host untouched.
	var recipeEntry *content.RecipeEntry
	if item.Recipe != nil && !inj.host.Recipes().Contains(id) {
		entry, err := inj.buildRecipeEntry(item, id)
		if err != nil {
			return err
		}
		recipeEntry = entry
	}

	if err := inj.host.Items().Insert(host.Record{Hash: id, Label: item.Name()}); err != nil {
		return err
	}
	if recipeEntry != nil {
		if err := inj.host.Recipes().Insert(recipeEntry); err != nil {
			return err
		}
	}
	return nil
}

func (inj *Injector) fixItemReferences(item *content.Item) error {
	if item.Recipe == nil {
		return nil
	}
	for _, ing := range item.Recipe.Ingredients {
		id, err := inj.resolver.Resolve(ing.Ref)
		if err != nil {
			return err
		}
		ing.ResolvedID = id
	}
	return nil
}

func (inj *Injector) buildRecipeEntry(item *content.Item, id identity.ID) (*content.RecipeEntry, error) {
	entry := &content.RecipeEntry{
		Hash:   id,
		Label:  item.Name(),
		Result: id,
		Yield:  item.Recipe.Yield,
	}
	for _, ing := range item.Recipe.Ingredients {
		resolved := ing.ResolvedID
		if resolved == 0 {
			id, err := inj.resolver.Resolve(ing.Ref)
			if err != nil {
				return nil, err
			}
			resolved = id
			ing.ResolvedID = id
		}
		entry.Ingredients = append(entry.Ingredients, content.ResolvedIngredient{
			ID:    resolved,
			Count: ing.Count,
		})
	}
	return entry, nil
}

func (inj *Injector) runEffects(report *Report) {
	for effect := range inj.effects.All() {
		name := effect.Name()
		id := identity.Hash(name)
		if done, err := inj.presence(inj.host.Effects(), id, name); err != nil {
			inj.drop(report, "effect", name, err, inj.effects.Remove)
			continue
		} else if done {
			report.record("effect", name, OutcomeSkipped, nil)
			continue
		}
		if err := guard(func() error { return inj.injectEffect(effect, id) }); err != nil {
			inj.drop(report, "effect", name, err, inj.effects.Remove)
			continue
		}
		report.record("effect", name, OutcomeInjected, nil)
	}
}

func (inj *Injector) injectEffect(effect *content.Effect, id identity.ID) error {
	if effect.Fix.NeedsReferenceFix || effect.ResolvedTarget == 0 {
		target, err := inj.resolver.Resolve(effect.Target)
		if err != nil {
			return err
		}
		effect.ResolvedTarget = target
		effect.Fix.NeedsReferenceFix = false
	}
	return inj.host.Effects().Insert(&content.EffectEntry{
		Hash:        id,
		Label:       effect.Name(),
		Target:      effect.ResolvedTarget,
		Magnitude:   effect.Magnitude,
		DurationSec: effect.DurationSec,
	})
}

func (inj *Injector) runSpawns(report *Report) {
	for spawn := range inj.spawns.All() {
		name := spawn.Name()
		id := identity.Hash(name)
		if done, err := inj.presence(inj.host.Spawns(), id, name); err != nil {
			inj.drop(report, "spawn", name, err, inj.spawns.Remove)
			continue
		} else if done {
			report.record("spawn", name, OutcomeSkipped, nil)
			continue
		}
		if err := guard(func() error { return inj.injectSpawn(spawn, id) }); err != nil {
			inj.drop(report, "spawn", name, err, inj.spawns.Remove)
			continue
		}
		report.record("spawn", name, OutcomeInjected, nil)
	}
}

func (inj *Injector) injectSpawn(spawn *content.Spawn, id identity.ID) error {
	if spawn.Fix.NeedsReferenceFix || spawn.ResolvedSubject == 0 {
		subject, err := inj.resolver.Resolve(spawn.Subject)
		if err != nil {
			return err
		}
		spawn.ResolvedSubject = subject
		spawn.Fix.NeedsReferenceFix = false
	}
	if spawn.Fix.NeedsConfigFix {
		if spawn.Weight == 0 {
			spawn.Weight = 1
		}
		spawn.Fix.NeedsConfigFix = false
	}
	return inj.host.Spawns().Insert(&content.SpawnEntry{
		Hash:    id,
		Label:   spawn.Name(),
		Subject: spawn.ResolvedSubject,
		Biome:   spawn.Biome,
		Weight:  spawn.Weight,
	})
}

func (inj *Injector) runConversions(report *Report) {
	for conv := range inj.conversions.All() {
		name := conv.Name()
		outcome, err := OutcomeSkipped, error(nil)
		err = guard(func() error {
			var innerErr error
			outcome, innerErr = inj.injectConversion(conv)
			return innerErr
		})
		if err != nil {
			inj.drop(report, "conversion", name, err, inj.conversions.Remove)
			continue
		}
		report.record("conversion", name, outcome, nil)
	}
}

func (inj *Injector) injectConversion(conv *content.Conversion) (Outcome, error) {
	target, ok := targets[conv.Target]
	if !ok {
		return OutcomeDropped, fmt.Errorf("%w: %q", ErrUnknownKind, conv.Target)
	}
	sys, ok := inj.host.Conversions(target.Kind())
	if !ok {
		return OutcomeDropped, fmt.Errorf("%w: host has no %s subsystem", ErrUnknownKind, target.Kind())
	}

	input, err := inj.resolver.Resolve(conv.Input)
	if err != nil {
		return OutcomeDropped, err
	}
	output, err := inj.resolver.Resolve(conv.Output)
	if err != nil {
		return OutcomeDropped, err
	}

	entry := host.ConversionEntry{Input: input, Output: output, Ratio: conv.Ratio}
	if target.Exists(sys, entry) {
		// Equivalent entry already present; treated as success.
		return OutcomeSkipped, nil
	}
	if err := target.Apply(sys, entry); err != nil {
		return OutcomeDropped, err
	}
	return OutcomeInjected, nil
}

// presence reports whether the identifier already lives in the table. An
// entry under the same identifier but a different name is a collision and
// must fail loudly rather than silently overwrite.
func (inj *Injector) presence(table host.Table, id identity.ID, name string) (bool, error) {
	obj, ok := table.Lookup(id)
	if !ok {
		return false, nil
	}
	if obj.Name() != name {
		return false, fmt.Errorf("%w: %q and %q both hash to %#08x", identity.ErrCollision, obj.Name(), name, uint32(id))
	}
	return true, nil
}

// drop handles a failed entity: log, remove it from its registry for good,
// continue with the batch. There is no retry on a later rebuild; the
// definition is treated as poisoned.
func (inj *Injector) drop(report *Report, kind, name string, err error, remove func(string) bool) {
	inj.log.Error("entity injection failed, dropping",
		log.String("kind", kind),
		log.String("name", name),
		log.Error(err),
	)
	remove(name)
	report.record(kind, name, OutcomeDropped, err)
}

// guard converts a panic during one entity's injection into an error so a
// single bad definition cannot abort the batch.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("injection panic: %v", r)
		}
	}()
	return fn()
}
