// Package content defines the entity records extension code registers with
// the engine: items with optional derived recipes, effects, world spawns
// and item conversions. Records are plain data; all host interaction
// happens later, at injection time.
package content

import (
	"errors"
	"fmt"

	"github.com/modforge/modforge/internal/core/identity"
)

// ErrInvalid marks a record that fails its own well-formedness check.
var ErrInvalid = errors.New("content: invalid definition")

// Kind discriminates the entity registries a placeholder reference can
// point into.
type Kind uint8

const (
	KindItem Kind = iota
	KindEffect
	KindSpawn
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindEffect:
		return "effect"
	case KindSpawn:
		return "spawn"
	case KindConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

// Reference is a by-name stand-in for an entity that may not exist yet at
// registration time. It is resolved lazily, at injection.
type Reference struct {
	Kind Kind
	Name string
}

func (r Reference) IsZero() bool {
	return r.Name == ""
}

func (r Reference) String() string {
	return r.Kind.String() + ":" + r.Name
}

// FixFlags marks one-time fix-ups still owed to a record. Each flag is
// cleared after its fix-up first succeeds so later rebuilds do not redo it.
type FixFlags struct {
	NeedsReferenceFix bool
	NeedsConfigFix    bool
}

// Ingredient is one requirement of a recipe. ResolvedID is filled by the
// reference fix-up and stays valid across rebuilds.
type Ingredient struct {
	Ref        Reference
	Count      int
	ResolvedID identity.ID
}

// Recipe is the derived artifact an item may imply. It is injected into
// the host's recipe table alongside its item.
type Recipe struct {
	Yield         int
	UnlockAtStart bool
	Ingredients   []*Ingredient
}

// Item is a registrable content entity.
type Item struct {
	ItemName  string
	Category  string
	StackSize int
	Recipe    *Recipe
	Fix       FixFlags
}

func (i *Item) Name() string { return i.ItemName }

func (i *Item) Validate() error {
	if i.ItemName == "" {
		return fmt.Errorf("%w: item with empty name", ErrInvalid)
	}
	if i.StackSize < 0 {
		return fmt.Errorf("%w: item %q has negative stack size", ErrInvalid, i.ItemName)
	}
	if i.Recipe != nil {
		if i.Recipe.Yield < 1 {
			return fmt.Errorf("%w: item %q recipe yield must be at least 1", ErrInvalid, i.ItemName)
		}
		for _, ing := range i.Recipe.Ingredients {
			if ing.Ref.IsZero() {
				return fmt.Errorf("%w: item %q recipe has an unnamed ingredient", ErrInvalid, i.ItemName)
			}
			if ing.Count < 1 {
				return fmt.Errorf("%w: item %q requires at least 1 of %s", ErrInvalid, i.ItemName, ing.Ref)
			}
		}
	}
	return nil
}

// Effect attaches a timed modifier to an item. ResolvedTarget is filled by
// the reference fix-up.
type Effect struct {
	EffectName     string
	Target         Reference
	Magnitude      float64
	DurationSec    int
	ResolvedTarget identity.ID
	Fix            FixFlags
}

func (e *Effect) Name() string { return e.EffectName }

func (e *Effect) Validate() error {
	if e.EffectName == "" {
		return fmt.Errorf("%w: effect with empty name", ErrInvalid)
	}
	if e.Target.IsZero() {
		return fmt.Errorf("%w: effect %q has no target", ErrInvalid, e.EffectName)
	}
	if e.DurationSec < 0 {
		return fmt.Errorf("%w: effect %q has negative duration", ErrInvalid, e.EffectName)
	}
	return nil
}

// Spawn places an entity into the world at rebuild time. ResolvedSubject
// is filled by the reference fix-up.
type Spawn struct {
	SpawnName       string
	Subject         Reference
	Biome           string
	Weight          float64
	ResolvedSubject identity.ID
	Fix             FixFlags
}

func (s *Spawn) Name() string { return s.SpawnName }

func (s *Spawn) Validate() error {
	if s.SpawnName == "" {
		return fmt.Errorf("%w: spawn with empty name", ErrInvalid)
	}
	if s.Subject.IsZero() {
		return fmt.Errorf("%w: spawn %q has no subject", ErrInvalid, s.SpawnName)
	}
	if s.Biome == "" {
		return fmt.Errorf("%w: spawn %q has no biome", ErrInvalid, s.SpawnName)
	}
	if s.Weight < 0 {
		return fmt.Errorf("%w: spawn %q has negative weight", ErrInvalid, s.SpawnName)
	}
	return nil
}

// Conversion turns one item into another inside a host subsystem. Target
// is the subsystem tag; it is parsed at injection time, so an unknown tag
// fails that single conversion rather than the Add call.
type Conversion struct {
	ConvName string
	Target   string
	Input    Reference
	Output   Reference
	Ratio    int
}

func (c *Conversion) Name() string { return c.ConvName }

func (c *Conversion) Validate() error {
	if c.ConvName == "" {
		return fmt.Errorf("%w: conversion with empty name", ErrInvalid)
	}
	if c.Input.IsZero() || c.Output.IsZero() {
		return fmt.Errorf("%w: conversion %q needs both input and output", ErrInvalid, c.ConvName)
	}
	if c.Ratio < 1 {
		return fmt.Errorf("%w: conversion %q ratio must be at least 1", ErrInvalid, c.ConvName)
	}
	return nil
}

// ResolvedIngredient is an ingredient after reference resolution.
type ResolvedIngredient struct {
	ID    identity.ID
	Count int
}

// RecipeEntry is the derived recipe as it lives in the host's recipe
// table. It implements host.Object; its identifier is the result item's.
type RecipeEntry struct {
	Hash        identity.ID
	Label       string
	Result      identity.ID
	Yield       int
	Ingredients []ResolvedIngredient
}

func (e *RecipeEntry) ID() identity.ID { return e.Hash }
func (e *RecipeEntry) Name() string    { return e.Label }

// EffectEntry is the injected form of an Effect.
type EffectEntry struct {
	Hash        identity.ID
	Label       string
	Target      identity.ID
	Magnitude   float64
	DurationSec int
}

func (e *EffectEntry) ID() identity.ID { return e.Hash }
func (e *EffectEntry) Name() string    { return e.Label }

// SpawnEntry is the injected form of a Spawn, as registered in the host's
// scene table.
type SpawnEntry struct {
	Hash    identity.ID
	Label   string
	Subject identity.ID
	Biome   string
	Weight  float64
}

func (e *SpawnEntry) ID() identity.ID { return e.Hash }
func (e *SpawnEntry) Name() string    { return e.Label }
