package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

// --- CatalogRepository Implementation ---

// GetItem retrieves an item by ID. Returns nil, nil if not found.
func (r *Repository) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	const query = `
	SELECT id, name, base_value, rarity, demand, image_url,
	       allowed_mutation_ids, allowed_trait_ids, mutation_overrides, trait_overrides
	FROM brainrots
	WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Item not found by ID", map[string]interface{}{"itemID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query item by ID %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return item, nil
}

// ListMutations returns the full mutation catalog ordered by ID.
func (r *Repository) ListMutations(ctx context.Context) ([]domain.Mutation, error) {
	const query = `SELECT id, name, multiplier, is_active, color, image_url FROM mutations ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutations: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	mutations := make([]domain.Mutation, 0)
	for rows.Next() {
		var m domain.Mutation
		if err := rows.Scan(&m.ID, &m.Name, &m.Multiplier, &m.IsActive, &m.Color, &m.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan mutation: %w", err)
		}
		mutations = append(mutations, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mutation rows: %w", err)
	}
	return mutations, nil
}

// ListTraits returns the full trait catalog ordered by ID.
func (r *Repository) ListTraits(ctx context.Context) ([]domain.Trait, error) {
	const query = `SELECT id, name, multiplier, is_active, image_url FROM traits ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query traits: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	traits := make([]domain.Trait, 0)
	for rows.Next() {
		var t domain.Trait
		if err := rows.Scan(&t.ID, &t.Name, &t.Multiplier, &t.IsActive, &t.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan trait: %w", err)
		}
		traits = append(traits, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trait rows: %w", err)
	}
	return traits, nil
}

// UpsertItem inserts or replaces a catalog item.
func (r *Repository) UpsertItem(ctx context.Context, item *domain.Item) error {
	allowedMutations, err := json.Marshal(nonNil(item.AllowedMutationIDs))
	if err != nil {
		return fmt.Errorf("failed to encode allowed mutations of item %s: %w", item.ID, err)
	}
	allowedTraits, err := json.Marshal(nonNil(item.AllowedTraitIDs))
	if err != nil {
		return fmt.Errorf("failed to encode allowed traits of item %s: %w", item.ID, err)
	}
	mutationOverrides, err := json.Marshal(nonNilOverrides(item.MutationOverrides))
	if err != nil {
		return fmt.Errorf("failed to encode mutation overrides of item %s: %w", item.ID, err)
	}
	traitOverrides, err := json.Marshal(nonNilOverrides(item.TraitOverrides))
	if err != nil {
		return fmt.Errorf("failed to encode trait overrides of item %s: %w", item.ID, err)
	}

	const query = `
	INSERT INTO brainrots (id, name, base_value, rarity, demand, image_url,
	                       allowed_mutation_ids, allowed_trait_ids, mutation_overrides, trait_overrides)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		base_value = excluded.base_value,
		rarity = excluded.rarity,
		demand = excluded.demand,
		image_url = excluded.image_url,
		allowed_mutation_ids = excluded.allowed_mutation_ids,
		allowed_trait_ids = excluded.allowed_trait_ids,
		mutation_overrides = excluded.mutation_overrides,
		trait_overrides = excluded.trait_overrides`

	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.Name, item.BaseValue, item.Rarity, item.Demand, item.ImageURL,
		string(allowedMutations), string(allowedTraits), string(mutationOverrides), string(traitOverrides))
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w: %w", item.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Item upserted", map[string]interface{}{"itemID": item.ID})
	return nil
}

// UpsertMutation inserts or replaces a mutation.
func (r *Repository) UpsertMutation(ctx context.Context, m *domain.Mutation) error {
	const query = `
	INSERT INTO mutations (id, name, multiplier, is_active, color, image_url)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		multiplier = excluded.multiplier,
		is_active = excluded.is_active,
		color = excluded.color,
		image_url = excluded.image_url`

	if _, err := r.db.ExecContext(ctx, query, m.ID, m.Name, m.Multiplier, m.IsActive, m.Color, m.ImageURL); err != nil {
		return fmt.Errorf("failed to upsert mutation %s: %w: %w", m.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Mutation upserted", map[string]interface{}{"mutationID": m.ID})
	return nil
}

// UpsertTrait inserts or replaces a trait.
func (r *Repository) UpsertTrait(ctx context.Context, t *domain.Trait) error {
	const query = `
	INSERT INTO traits (id, name, multiplier, is_active, image_url)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		multiplier = excluded.multiplier,
		is_active = excluded.is_active,
		image_url = excluded.image_url`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Name, t.Multiplier, t.IsActive, t.ImageURL); err != nil {
		return fmt.Errorf("failed to upsert trait %s: %w: %w", t.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Trait upserted", map[string]interface{}{"traitID": t.ID})
	return nil
}

// scanItem scans a row into a domain.Item struct.
func scanItem(s scanner) (*domain.Item, error) {
	item := &domain.Item{}
	var rarity, demand string
	var allowedMutations, allowedTraits, mutationOverrides, traitOverrides string
	err := s.Scan(
		&item.ID, &item.Name, &item.BaseValue, &rarity, &demand, &item.ImageURL,
		&allowedMutations, &allowedTraits, &mutationOverrides, &traitOverrides)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	item.Rarity = domain.Rarity(rarity)
	item.Demand = domain.Demand(demand)

	for _, c := range []struct {
		raw  string
		dest interface{}
	}{
		{allowedMutations, &item.AllowedMutationIDs},
		{allowedTraits, &item.AllowedTraitIDs},
		{mutationOverrides, &item.MutationOverrides},
		{traitOverrides, &item.TraitOverrides},
	} {
		if err := json.Unmarshal([]byte(c.raw), c.dest); err != nil {
			return nil, fmt.Errorf("failed to decode catalog columns of item %s: %w", item.ID, err)
		}
	}
	return item, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func nonNilOverrides(m map[string]domain.Override) map[string]domain.Override {
	if m == nil {
		return map[string]domain.Override{}
	}
	return m
}
