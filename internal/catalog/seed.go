package catalog

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

// Seed is the YAML catalog file loaded by the seeding tool.
type Seed struct {
	Mutations []SeedModifier `yaml:"mutations"`
	Traits    []SeedModifier `yaml:"traits"`
	Items     []SeedItem     `yaml:"items"`
}

// SeedModifier describes a mutation or trait.
type SeedModifier struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
	Inactive   bool    `yaml:"inactive"`
	Color      string  `yaml:"color"` // Mutations only
	ImageURL   string  `yaml:"image"`
}

// SeedItem describes an item and the modifiers it allows. A modifier listed
// with a multiplier overrides the catalog value for this item.
type SeedItem struct {
	ID        string          `yaml:"id"`
	Name      string          `yaml:"name"`
	BaseValue float64         `yaml:"baseValue"`
	Rarity    domain.Rarity   `yaml:"rarity"`
	Demand    domain.Demand   `yaml:"demand"`
	ImageURL  string          `yaml:"image"`
	Mutations []SeedAllowance `yaml:"mutations"`
	Traits    []SeedAllowance `yaml:"traits"`
}

// SeedAllowance allows one modifier on an item.
type SeedAllowance struct {
	ID         string  `yaml:"id"`
	Multiplier float64 `yaml:"multiplier"` // Zero keeps the catalog multiplier
	ImageURL   string  `yaml:"image"`
}

func (a SeedAllowance) override() *domain.Override {
	if a.Multiplier == 0 && a.ImageURL == "" {
		return nil
	}
	return &domain.Override{Multiplier: a.Multiplier, ImageURL: a.ImageURL}
}

// LoadSeed decodes a YAML catalog. Unknown keys are rejected.
func LoadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Seed
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode catalog seed: %w: %w", domain.ErrValidation, err)
	}
	return &s, nil
}

// Build validates every entry through the domain constructors.
func (s *Seed) Build() ([]*domain.Mutation, []*domain.Trait, []*domain.Item, error) {
	mutations := make([]*domain.Mutation, 0, len(s.Mutations))
	for _, sm := range s.Mutations {
		m, err := domain.NewMutation(sm.ID, sm.Name, sm.Multiplier)
		if err != nil {
			return nil, nil, nil, err
		}
		m.IsActive = !sm.Inactive
		m.Color = sm.Color
		m.ImageURL = sm.ImageURL
		mutations = append(mutations, m)
	}

	traits := make([]*domain.Trait, 0, len(s.Traits))
	for _, st := range s.Traits {
		t, err := domain.NewTrait(st.ID, st.Name, st.Multiplier)
		if err != nil {
			return nil, nil, nil, err
		}
		t.IsActive = !st.Inactive
		t.ImageURL = st.ImageURL
		traits = append(traits, t)
	}

	items := make([]*domain.Item, 0, len(s.Items))
	for _, si := range s.Items {
		item, err := domain.NewItem(si.ID, si.Name, si.BaseValue, si.Rarity, si.Demand)
		if err != nil {
			return nil, nil, nil, err
		}
		item.ImageURL = si.ImageURL
		for _, a := range si.Mutations {
			if err := item.AllowMutation(a.ID, a.override()); err != nil {
				return nil, nil, nil, err
			}
		}
		for _, a := range si.Traits {
			if err := item.AllowTrait(a.ID, a.override()); err != nil {
				return nil, nil, nil, err
			}
		}
		items = append(items, item)
	}
	return mutations, traits, items, nil
}

// SeedResult counts what Apply wrote.
type SeedResult struct {
	Mutations int
	Traits    int
	Items     int
}

// Apply validates the whole seed first, then upserts modifiers before items.
// Nothing is written when any entry is invalid.
func (s *Seed) Apply(ctx context.Context, repo ports.CatalogRepository) (SeedResult, error) {
	var res SeedResult
	mutations, traits, items, err := s.Build()
	if err != nil {
		return res, err
	}
	for _, m := range mutations {
		if err := repo.UpsertMutation(ctx, m); err != nil {
			return res, fmt.Errorf("failed to upsert mutation %q: %w", m.ID, err)
		}
		res.Mutations++
	}
	for _, t := range traits {
		if err := repo.UpsertTrait(ctx, t); err != nil {
			return res, fmt.Errorf("failed to upsert trait %q: %w", t.ID, err)
		}
		res.Traits++
	}
	for _, it := range items {
		if err := repo.UpsertItem(ctx, it); err != nil {
			return res, fmt.Errorf("failed to upsert item %q: %w", it.ID, err)
		}
		res.Items++
	}
	return res, nil
}
