package content

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a definitions file, in JSON or YAML. It is
// plain unvalidated data; Build turns it into validated entity records.
type File struct {
	Items       []ItemDef       `json:"items,omitempty" yaml:"items,omitempty"`
	Effects     []EffectDef     `json:"effects,omitempty" yaml:"effects,omitempty"`
	Spawns      []SpawnDef      `json:"spawns,omitempty" yaml:"spawns,omitempty"`
	Conversions []ConversionDef `json:"conversions,omitempty" yaml:"conversions,omitempty"`
}

type ItemDef struct {
	Name      string     `json:"name" yaml:"name"`
	Category  string     `json:"category,omitempty" yaml:"category,omitempty"`
	StackSize int        `json:"stack_size,omitempty" yaml:"stack_size,omitempty"`
	Recipe    *RecipeDef `json:"recipe,omitempty" yaml:"recipe,omitempty"`
}

type RecipeDef struct {
	Yield         int             `json:"yield,omitempty" yaml:"yield,omitempty"`
	UnlockAtStart bool            `json:"unlock_at_start,omitempty" yaml:"unlock_at_start,omitempty"`
	Ingredients   []IngredientDef `json:"ingredients" yaml:"ingredients"`
}

type IngredientDef struct {
	Item  string `json:"item" yaml:"item"`
	Count int    `json:"count" yaml:"count"`
}

type EffectDef struct {
	Name        string  `json:"name" yaml:"name"`
	Item        string  `json:"item" yaml:"item"`
	Magnitude   float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
	DurationSec int     `json:"duration_sec,omitempty" yaml:"duration_sec,omitempty"`
}

type SpawnDef struct {
	Name   string  `json:"name" yaml:"name"`
	Item   string  `json:"item" yaml:"item"`
	Biome  string  `json:"biome" yaml:"biome"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

type ConversionDef struct {
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"`
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
	Ratio  int    `json:"ratio,omitempty" yaml:"ratio,omitempty"`
}

// Bundle holds validated entity records ready for registration.
type Bundle struct {
	Items       []*Item
	Effects     []*Effect
	Spawns      []*Spawn
	Conversions []*Conversion
}

// LoadJSON reads a definitions file from a JSON reader.
func LoadJSON(r io.Reader) (*File, error) {
	var f File
	dec := json.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadYAML reads a definitions file from a YAML reader.
func LoadYAML(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Build validates every definition and returns the entity records. The
// first invalid definition aborts with its validation error; nothing
// partially built is returned.
func (f *File) Build() (*Bundle, error) {
	b := &Bundle{}
	for _, d := range f.Items {
		item := d.build()
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %q: %w", d.Name, err)
		}
		b.Items = append(b.Items, item)
	}
	for _, d := range f.Effects {
		effect := d.build()
		if err := effect.Validate(); err != nil {
			return nil, fmt.Errorf("effect %q: %w", d.Name, err)
		}
		b.Effects = append(b.Effects, effect)
	}
	for _, d := range f.Spawns {
		spawn := d.build()
		if err := spawn.Validate(); err != nil {
			return nil, fmt.Errorf("spawn %q: %w", d.Name, err)
		}
		b.Spawns = append(b.Spawns, spawn)
	}
	for _, d := range f.Conversions {
		conv := d.build()
		if err := conv.Validate(); err != nil {
			return nil, fmt.Errorf("conversion %q: %w", d.Name, err)
		}
		b.Conversions = append(b.Conversions, conv)
	}
	return b, nil
}

func (d ItemDef) build() *Item {
	item := &Item{
		ItemName:  d.Name,
		Category:  d.Category,
		StackSize: d.StackSize,
		Fix:       FixFlags{NeedsConfigFix: d.StackSize == 0},
	}
	if d.Recipe != nil {
		recipe := &Recipe{
			Yield:         max(d.Recipe.Yield, 1),
			UnlockAtStart: d.Recipe.UnlockAtStart,
		}
		for _, ing := range d.Recipe.Ingredients {
			recipe.Ingredients = append(recipe.Ingredients, &Ingredient{
				Ref:   Reference{Kind: KindItem, Name: ing.Item},
				Count: ing.Count,
			})
		}
		item.Recipe = recipe
		item.Fix.NeedsReferenceFix = len(recipe.Ingredients) > 0
	}
	return item
}

func (d EffectDef) build() *Effect {
	return &Effect{
		EffectName:  d.Name,
		Target:      Reference{Kind: KindItem, Name: d.Item},
		Magnitude:   d.Magnitude,
		DurationSec: d.DurationSec,
		Fix:         FixFlags{NeedsReferenceFix: d.Item != ""},
	}
}

func (d SpawnDef) build() *Spawn {
	return &Spawn{
		SpawnName: d.Name,
		Subject:   Reference{Kind: KindItem, Name: d.Item},
		Biome:     d.Biome,
		Weight:    d.Weight,
		Fix: FixFlags{
			NeedsReferenceFix: d.Item != "",
			NeedsConfigFix:    d.Weight == 0,
		},
	}
}

func (d ConversionDef) build() *Conversion {
	return &Conversion{
		ConvName: d.Name,
		Target:   d.Target,
		Input:    Reference{Kind: KindItem, Name: d.Input},
		Output:   Reference{Kind: KindItem, Name: d.Output},
		Ratio:    max(d.Ratio, 1),
	}
}
