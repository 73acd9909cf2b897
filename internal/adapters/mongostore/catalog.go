package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

// GetItem retrieves an item by ID. Returns nil, nil if not found.
func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var doc itemDoc
	err := s.brainrots.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.logger.Debug(ctx, "Item not found by ID", map[string]interface{}{"itemID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query item %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return doc.toDomain(), nil
}

// ListMutations returns the full mutation catalog ordered by ID.
func (s *Store) ListMutations(ctx context.Context) ([]domain.Mutation, error) {
	cursor, err := s.mutations.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query mutations: %w: %w", ports.ErrQueryFailed, err)
	}
	var docs []mutationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode mutations: %w", err)
	}
	out := make([]domain.Mutation, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Mutation{
			ID:         d.ID,
			Name:       d.Name,
			Multiplier: d.Multiplier,
			IsActive:   d.IsActive,
			Color:      d.Color,
			ImageURL:   d.ImageURL,
		})
	}
	return out, nil
}

// ListTraits returns the full trait catalog ordered by ID.
func (s *Store) ListTraits(ctx context.Context) ([]domain.Trait, error) {
	cursor, err := s.traits.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query traits: %w: %w", ports.ErrQueryFailed, err)
	}
	var docs []traitDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode traits: %w", err)
	}
	out := make([]domain.Trait, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Trait{
			ID:         d.ID,
			Name:       d.Name,
			Multiplier: d.Multiplier,
			IsActive:   d.IsActive,
			ImageURL:   d.ImageURL,
		})
	}
	return out, nil
}

// UpsertItem inserts or replaces a catalog item.
func (s *Store) UpsertItem(ctx context.Context, item *domain.Item) error {
	return s.replace(ctx, s.brainrots, item.ID, fromItem(item))
}

// UpsertMutation inserts or replaces a mutation.
func (s *Store) UpsertMutation(ctx context.Context, m *domain.Mutation) error {
	return s.replace(ctx, s.mutations, m.ID, mutationDoc{
		ID: m.ID, Name: m.Name, Multiplier: m.Multiplier, IsActive: m.IsActive, Color: m.Color, ImageURL: m.ImageURL,
	})
}

// UpsertTrait inserts or replaces a trait.
func (s *Store) UpsertTrait(ctx context.Context, t *domain.Trait) error {
	return s.replace(ctx, s.traits, t.ID, traitDoc{
		ID: t.ID, Name: t.Name, Multiplier: t.Multiplier, IsActive: t.IsActive, ImageURL: t.ImageURL,
	})
}

func (s *Store) replace(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s %s: %w", coll.Name(), id, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to upsert %s %s: %w: %w", coll.Name(), id, ports.ErrUpdateFailed, err)
	}
	s.logger.Debug(ctx, "Catalog entry upserted", map[string]interface{}{"collection": coll.Name(), "id": id})
	return nil
}
