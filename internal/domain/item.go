package domain

import (
	"fmt"
	"math"
	"strings"
)

// Override replaces the catalog multiplier (and optionally the image) of a
// mutation or trait for one specific item.
type Override struct {
	Multiplier float64 `json:"multiplier"`
	ImageURL   string  `json:"imageUrl,omitempty"`
}

// Usable reports whether the override carries a positive finite multiplier.
func (o Override) Usable() bool {
	return ValidMultiplier(o.Multiplier)
}

// Item is a tradeable catalog entry (a "brainrot").
type Item struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	BaseValue          float64             `json:"baseValue"`
	Rarity             Rarity              `json:"rarity"`
	Demand             Demand              `json:"demand"`
	ImageURL           string              `json:"imageUrl,omitempty"`
	AllowedMutationIDs []string            `json:"allowedMutationIds"`
	AllowedTraitIDs    []string            `json:"allowedTraitIds"`
	MutationOverrides  map[string]Override `json:"mutationOverrides,omitempty"`
	TraitOverrides     map[string]Override `json:"traitOverrides,omitempty"`
}

// NewItem validates and builds a catalog item without modifiers.
func NewItem(id, name string, baseValue float64, rarity Rarity, demand Demand) (*Item, error) {
	var errs []string
	if strings.TrimSpace(id) == "" {
		errs = append(errs, "id must be set")
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, "name must be set")
	}
	if baseValue < 0 || math.IsNaN(baseValue) || math.IsInf(baseValue, 0) {
		errs = append(errs, fmt.Sprintf("base value %v must be a non-negative finite number", baseValue))
	}
	if !rarity.Valid() {
		errs = append(errs, fmt.Sprintf("unknown rarity %q", rarity))
	}
	if !demand.Valid() {
		errs = append(errs, fmt.Sprintf("unknown demand %q", demand))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("item %q: %s: %w", id, strings.Join(errs, "; "), ErrValidation)
	}
	return &Item{
		ID:                 id,
		Name:               name,
		BaseValue:          baseValue,
		Rarity:             rarity,
		Demand:             demand,
		AllowedMutationIDs: []string{},
		AllowedTraitIDs:    []string{},
		MutationOverrides:  map[string]Override{},
		TraitOverrides:     map[string]Override{},
	}, nil
}

// AllowMutation adds a mutation to the item's allowed set, with an optional override.
func (i *Item) AllowMutation(mutationID string, override *Override) error {
	if override != nil && !override.Usable() {
		return fmt.Errorf("item %q: mutation %q override multiplier %v must be positive: %w",
			i.ID, mutationID, override.Multiplier, ErrValidation)
	}
	if !contains(i.AllowedMutationIDs, mutationID) {
		i.AllowedMutationIDs = append(i.AllowedMutationIDs, mutationID)
	}
	if override != nil {
		if i.MutationOverrides == nil {
			i.MutationOverrides = map[string]Override{}
		}
		i.MutationOverrides[mutationID] = *override
	}
	return nil
}

// AllowTrait adds a trait to the item's allowed set, with an optional override.
func (i *Item) AllowTrait(traitID string, override *Override) error {
	if override != nil && !override.Usable() {
		return fmt.Errorf("item %q: trait %q override multiplier %v must be positive: %w",
			i.ID, traitID, override.Multiplier, ErrValidation)
	}
	if !contains(i.AllowedTraitIDs, traitID) {
		i.AllowedTraitIDs = append(i.AllowedTraitIDs, traitID)
	}
	if override != nil {
		if i.TraitOverrides == nil {
			i.TraitOverrides = map[string]Override{}
		}
		i.TraitOverrides[traitID] = *override
	}
	return nil
}

// MutationOverride returns the usable override for a mutation, if any.
func (i *Item) MutationOverride(mutationID string) (Override, bool) {
	if i == nil {
		return Override{}, false
	}
	o, ok := i.MutationOverrides[mutationID]
	return o, ok && o.Usable()
}

// TraitOverride returns the usable override for a trait, if any.
func (i *Item) TraitOverride(traitID string) (Override, bool) {
	if i == nil {
		return Override{}, false
	}
	o, ok := i.TraitOverrides[traitID]
	return o, ok && o.Usable()
}

// Mutation is an exclusive value modifier; at most one applies per traded item.
type Mutation struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	IsActive   bool    `json:"isActive"`
	Color      string  `json:"color,omitempty"`
	ImageURL   string  `json:"imageUrl,omitempty"`
}

// NewMutation validates and builds an active mutation.
func NewMutation(id, name string, multiplier float64) (*Mutation, error) {
	if err := validateModifier("mutation", id, name, multiplier); err != nil {
		return nil, err
	}
	return &Mutation{ID: id, Name: name, Multiplier: multiplier, IsActive: true}, nil
}

// Trait is a non-exclusive value modifier; trait multipliers add up.
type Trait struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	IsActive   bool    `json:"isActive"`
	ImageURL   string  `json:"imageUrl,omitempty"`
}

// NewTrait validates and builds an active trait.
func NewTrait(id, name string, multiplier float64) (*Trait, error) {
	if err := validateModifier("trait", id, name, multiplier); err != nil {
		return nil, err
	}
	return &Trait{ID: id, Name: name, Multiplier: multiplier, IsActive: true}, nil
}

// ResolvedModifier is the effective mutation or trait applied to one item,
// after per-item overrides.
type ResolvedModifier struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Color      string  `json:"color,omitempty"`
	ImageURL   string  `json:"imageUrl,omitempty"`
	Overridden bool    `json:"overridden"`
}

// ValidMultiplier reports whether m is strictly positive and finite.
func ValidMultiplier(m float64) bool {
	return m > 0 && !math.IsInf(m, 0) && !math.IsNaN(m)
}

func validateModifier(kind, id, name string, multiplier float64) error {
	var errs []string
	if strings.TrimSpace(id) == "" {
		errs = append(errs, "id must be set")
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, "name must be set")
	}
	if !ValidMultiplier(multiplier) {
		errs = append(errs, fmt.Sprintf("multiplier %v must be positive", multiplier))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s %q: %s: %w", kind, id, strings.Join(errs, "; "), ErrValidation)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
