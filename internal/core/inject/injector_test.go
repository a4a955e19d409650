package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/core/content"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/host/memhost"
	"github.com/modforge/modforge/internal/core/identity"
	"github.com/modforge/modforge/internal/core/observability/log"
	"github.com/modforge/modforge/internal/core/registry"
	"github.com/modforge/modforge/internal/core/resolve"
)

type fixture struct {
	host        *memhost.Host
	items       *registry.Registry[*content.Item]
	effects     *registry.Registry[*content.Effect]
	spawns      *registry.Registry[*content.Spawn]
	conversions *registry.Registry[*content.Conversion]
	injector    *Injector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithHost(t, memhost.New())
}

func newFixtureWithHost(t *testing.T, h host.Host) *fixture {
	t.Helper()
	space := identity.NewSpace()
	lg := log.Nop()
	f := &fixture{
		items:       registry.New[*content.Item]("items", space, lg),
		effects:     registry.New[*content.Effect]("effects", space, lg),
		spawns:      registry.New[*content.Spawn]("spawns", space, lg),
		conversions: registry.New[*content.Conversion]("conversions", space, lg),
	}
	if mh, ok := h.(*memhost.Host); ok {
		f.host = mh
	}
	resolver := resolve.New(h)
	resolver.Bind(content.KindItem, f.items)
	resolver.Bind(content.KindEffect, f.effects)
	resolver.Bind(content.KindSpawn, f.spawns)
	resolver.Bind(content.KindConversion, f.conversions)
	f.injector = New(h, resolver, f.items, f.effects, f.spawns, f.conversions, lg)
	return f
}

func itemRef(name string) content.Reference {
	return content.Reference{Kind: content.KindItem, Name: name}
}

func simpleItem(name string) *content.Item {
	return &content.Item{ItemName: name, StackSize: 1}
}

func craftedItem(name string, unlock bool, ingredients ...*content.Ingredient) *content.Item {
	return &content.Item{
		ItemName:  name,
		StackSize: 1,
		Recipe: &content.Recipe{
			Yield:         1,
			UnlockAtStart: unlock,
			Ingredients:   ingredients,
		},
		Fix: content.FixFlags{NeedsReferenceFix: len(ingredients) > 0},
	}
}

func TestRunInjectsAllKinds(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("titanium")

	require.True(t, f.items.Add(simpleItem("crystal")))
	require.True(t, f.items.Add(craftedItem("blade", true,
		&content.Ingredient{Ref: itemRef("titanium"), Count: 2},
		&content.Ingredient{Ref: itemRef("crystal"), Count: 1},
	)))
	require.True(t, f.effects.Add(&content.Effect{
		EffectName: "blade_heat",
		Target:     itemRef("blade"),
		Magnitude:  1.5,
		Fix:        content.FixFlags{NeedsReferenceFix: true},
	}))
	require.True(t, f.spawns.Add(&content.Spawn{
		SpawnName: "crystal_vein",
		Subject:   itemRef("crystal"),
		Biome:     "caves",
		Weight:    0.4,
		Fix:       content.FixFlags{NeedsReferenceFix: true},
	}))
	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "crystal_grinding",
		Target:   "recycler",
		Input:    itemRef("crystal"),
		Output:   itemRef("titanium"),
		Ratio:    2,
	}))

	report := f.injector.Run()
	assert.Equal(t, 5, report.Injected())
	assert.Equal(t, 0, report.Dropped())

	// native titanium + crystal + blade
	assert.Equal(t, 3, f.host.Items().Len())
	assert.Equal(t, 1, f.host.Effects().Len())
	assert.Equal(t, 1, f.host.Spawns().Len())
	assert.Equal(t, 1, f.host.Recipes().Len())

	obj, ok := f.host.Recipes().Lookup(identity.Hash("blade"))
	require.True(t, ok)
	recipe := obj.(*content.RecipeEntry)
	require.Len(t, recipe.Ingredients, 2)
	assert.Equal(t, identity.Hash("titanium"), recipe.Ingredients[0].ID)
	assert.Equal(t, 2, recipe.Ingredients[0].Count)
	assert.Equal(t, identity.Hash("crystal"), recipe.Ingredients[1].ID)

	sys, _ := f.host.Conversions(host.ConversionRecycler)
	require.Len(t, sys.Entries(), 1)
	assert.Equal(t, identity.Hash("crystal"), sys.Entries()[0].Input)
}

func TestRunIsIdempotentAcrossNotifications(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("titanium")
	require.True(t, f.items.Add(craftedItem("blade", false,
		&content.Ingredient{Ref: itemRef("titanium"), Count: 2},
	)))
	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "melt", Target: "smelter",
		Input: itemRef("blade"), Output: itemRef("titanium"), Ratio: 1,
	}))

	first := f.injector.Run()
	require.Equal(t, 0, first.Dropped())
	itemsLen, recipesLen := f.host.Items().Len(), f.host.Recipes().Len()
	sys, _ := f.host.Conversions(host.ConversionSmelter)
	convLen := len(sys.Entries())

	second := f.injector.Run()
	assert.Equal(t, 0, second.Injected())
	assert.Equal(t, 0, second.Dropped())
	assert.Equal(t, itemsLen, f.host.Items().Len())
	assert.Equal(t, recipesLen, f.host.Recipes().Len())
	assert.Equal(t, convLen, len(sys.Entries()))
}

func TestFixupsRunOnceAcrossHostWipes(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("titanium")
	item := craftedItem("blade", false, &content.Ingredient{Ref: itemRef("titanium"), Count: 2})
	require.True(t, f.items.Add(item))

	f.injector.Run()
	require.False(t, item.Fix.NeedsReferenceFix)
	resolved := item.Recipe.Ingredients[0].ResolvedID
	require.Equal(t, identity.Hash("titanium"), resolved)

	// The host wipes its database; the entity must be re-injected but the
	// one-time fix-up result is reused, not recomputed.
	f.host.Rebuild()
	require.False(t, f.host.Items().Contains(identity.Hash("blade")))

	report := f.injector.Run()
	assert.Equal(t, 1, report.Injected())
	assert.False(t, item.Fix.NeedsReferenceFix)
	assert.Equal(t, resolved, item.Recipe.Ingredients[0].ResolvedID)
	assert.True(t, f.host.Items().Contains(identity.Hash("blade")))
}

func TestConfigFixupAppliesDefaultOnce(t *testing.T) {
	f := newFixture(t)
	item := &content.Item{ItemName: "widget", Fix: content.FixFlags{NeedsConfigFix: true}}
	require.True(t, f.items.Add(item))

	f.injector.Run()
	assert.Equal(t, 1, item.StackSize)
	assert.False(t, item.Fix.NeedsConfigFix)
}

func TestFaultContainment(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.items.Add(simpleItem("alpha")))
	require.True(t, f.items.Add(craftedItem("broken", false,
		&content.Ingredient{Ref: itemRef("does_not_exist"), Count: 1},
	)))
	require.True(t, f.items.Add(simpleItem("omega")))

	report := f.injector.Run()

	assert.Equal(t, 2, report.Injected())
	require.Len(t, report.Failures(), 1)
	failure := report.Failures()[0]
	assert.Equal(t, "broken", failure.Name)
	assert.ErrorIs(t, failure.Err, resolve.ErrUnresolved)

	// Siblings survive in both the host store and the registry; the failed
	// entity is gone from the registry for good.
	assert.Equal(t, 2, f.host.Items().Len())
	assert.Equal(t, 2, f.items.Len())
	assert.False(t, f.items.Has("broken"))
	assert.False(t, f.host.Items().Contains(identity.Hash("broken")))

	// No retry: the next pass skips the survivors and re-drops nothing.
	again := f.injector.Run()
	assert.Equal(t, 2, again.Skipped())
	assert.Equal(t, 0, again.Dropped())
}

type panicTable struct {
	host.Table
	bad string
}

func (t panicTable) Insert(obj host.Object) error {
	if obj.Name() == t.bad {
		panic("host refused insert")
	}
	return t.Table.Insert(obj)
}

type panicHost struct {
	*memhost.Host
	bad string
}

func (h panicHost) Items() host.Table {
	return panicTable{Table: h.Host.Items(), bad: h.bad}
}

func TestPanicDuringInjectionIsContained(t *testing.T) {
	mh := memhost.New()
	f := newFixtureWithHost(t, panicHost{Host: mh, bad: "cursed"})
	require.True(t, f.items.Add(simpleItem("alpha")))
	require.True(t, f.items.Add(simpleItem("cursed")))
	require.True(t, f.items.Add(simpleItem("omega")))

	report := f.injector.Run()

	assert.Equal(t, 2, report.Injected())
	assert.Equal(t, 1, report.Dropped())
	assert.Equal(t, 2, mh.Items().Len())
	assert.False(t, f.items.Has("cursed"))
}

func TestHashCollisionInHostTableFailsLoudly(t *testing.T) {
	f := newFixture(t)
	// A foreign entry occupies the identifier the new item hashes to.
	require.NoError(t, f.host.Items().Insert(host.Record{
		Hash:  identity.Hash("blade"),
		Label: "impostor",
	}))
	require.True(t, f.items.Add(simpleItem("blade")))

	report := f.injector.Run()

	require.Len(t, report.Failures(), 1)
	assert.ErrorIs(t, report.Failures()[0].Err, identity.ErrCollision)
	assert.False(t, f.items.Has("blade"))
	// The pre-existing entry is untouched.
	obj, ok := f.host.Items().Lookup(identity.Hash("blade"))
	require.True(t, ok)
	assert.Equal(t, "impostor", obj.Name())
}

func TestConversionDuplicateIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("ore", "metal", "slag")

	sys, _ := f.host.Conversions(host.ConversionRecycler)
	require.NoError(t, sys.Append(host.ConversionEntry{
		Input:  identity.Hash("ore"),
		Output: identity.Hash("slag"),
		Ratio:  1,
	}))

	// Recycler entries match on input alone, so this is an equivalent
	// entry even though the output differs.
	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "ore_recycle", Target: "recycler",
		Input: itemRef("ore"), Output: itemRef("metal"), Ratio: 1,
	}))

	report := f.injector.Run()
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 0, report.Dropped())
	assert.Len(t, sys.Entries(), 1)
	// The conversion stays registered; a duplicate is not a fault.
	assert.True(t, f.conversions.Has("ore_recycle"))
}

func TestSmelterMatchesOnInputOutputPair(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("ore", "iron", "gold")

	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "ore_to_iron", Target: "smelter",
		Input: itemRef("ore"), Output: itemRef("iron"), Ratio: 1,
	}))
	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "ore_to_gold", Target: "smelter",
		Input: itemRef("ore"), Output: itemRef("gold"), Ratio: 4,
	}))

	report := f.injector.Run()
	assert.Equal(t, 2, report.Injected())

	sys, _ := f.host.Conversions(host.ConversionSmelter)
	assert.Len(t, sys.Entries(), 2)
}

func TestUnknownConversionKindDropsOnlyThatConversion(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("ore", "metal")

	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "weird", Target: "transmogrifier",
		Input: itemRef("ore"), Output: itemRef("metal"), Ratio: 1,
	}))
	require.True(t, f.conversions.Add(&content.Conversion{
		ConvName: "fine", Target: "fabricator",
		Input: itemRef("ore"), Output: itemRef("metal"), Ratio: 1,
	}))

	report := f.injector.Run()

	require.Len(t, report.Failures(), 1)
	assert.Equal(t, "weird", report.Failures()[0].Name)
	assert.ErrorIs(t, report.Failures()[0].Err, ErrUnknownKind)
	assert.Equal(t, 1, report.Injected())
	assert.False(t, f.conversions.Has("weird"))
	assert.True(t, f.conversions.Has("fine"))
}

func TestRefreshKnown(t *testing.T) {
	f := newFixture(t)
	f.host.SeedNative("titanium")
	require.True(t, f.items.Add(craftedItem("blade", true,
		&content.Ingredient{Ref: itemRef("titanium"), Count: 1},
	)))
	require.True(t, f.items.Add(craftedItem("hidden_blade", false,
		&content.Ingredient{Ref: itemRef("titanium"), Count: 1},
	)))

	// Before injection there is nothing to unlock.
	assert.Equal(t, 0, f.injector.RefreshKnown())

	f.injector.Run()
	assert.Equal(t, 1, f.injector.RefreshKnown())
	assert.True(t, f.host.Known().Contains(identity.Hash("blade")))
	assert.False(t, f.host.Known().Contains(identity.Hash("hidden_blade")))

	// Idempotent on repeated actor spawns.
	assert.Equal(t, 0, f.injector.RefreshKnown())
}
