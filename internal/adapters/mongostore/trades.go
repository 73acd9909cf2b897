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

// CreateTrade saves a new trade and returns its ID.
func (s *Store) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	_, err := s.trades.InsertOne(ctx, fromTrade(trade))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("trade %s: %w", trade.ID, ports.ErrDuplicateEntry)
		}
		return "", fmt.Errorf("failed to insert trade %s: %w: %w", trade.ID, ports.ErrQueryFailed, err)
	}
	s.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.ID, "ownerID": trade.OwnerID})
	return trade.ID, nil
}

// GetTrade retrieves a trade by ID. Returns nil, nil if not found.
func (s *Store) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	var doc tradeDoc
	err := s.trades.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			s.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query trade %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return doc.toDomain(), nil
}

// UpdateTrade applies patch only if the stored status and version still match guard.
func (s *Store) UpdateTrade(ctx context.Context, id string, guard ports.TradeGuard, patch ports.TradePatch) error {
	filter, update := tradeUpdate(id, guard, patch)
	res, err := s.trades.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", id, ports.ErrUpdateFailed, err)
	}
	if res.MatchedCount == 0 {
		n, err := s.trades.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("failed to check trade %s after update: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("trade %s not found for update: %w", id, ports.ErrNotFound)
		}
		return fmt.Errorf("trade %s no longer at %s/v%d: %w", id, guard.Status, guard.Version, ports.ErrConflict)
	}
	s.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": id, "fromStatus": guard.Status, "fromVersion": guard.Version})
	return nil
}

// tradeUpdate builds the guarded filter and the $set/$inc document for a patch.
func tradeUpdate(id string, guard ports.TradeGuard, patch ports.TradePatch) (bson.D, bson.D) {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: string(guard.Status)},
		{Key: "version", Value: guard.Version},
	}

	set := bson.D{}
	if patch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: string(*patch.Status)})
	}
	if patch.JoinerID != nil {
		set = append(set, bson.E{Key: "joinerId", Value: *patch.JoinerID})
	}
	if patch.OwnerAccepted != nil {
		set = append(set, bson.E{Key: "ownerAccepted", Value: *patch.OwnerAccepted})
	}
	if patch.JoinerAccepted != nil {
		set = append(set, bson.E{Key: "joinerAccepted", Value: *patch.JoinerAccepted})
	}
	if patch.FailReason != nil {
		set = append(set, bson.E{Key: "failReason", Value: string(*patch.FailReason)})
	}
	if patch.JoinedAt != nil {
		set = append(set, bson.E{Key: "joinedAt", Value: patch.JoinedAt.UTC()})
	}
	if patch.AcceptedAt != nil {
		set = append(set, bson.E{Key: "acceptedAt", Value: patch.AcceptedAt.UTC()})
	}
	if patch.CompletedAt != nil {
		set = append(set, bson.E{Key: "completedAt", Value: patch.CompletedAt.UTC()})
	}
	if patch.FailedAt != nil {
		set = append(set, bson.E{Key: "failedAt", Value: patch.FailedAt.UTC()})
	}

	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}}}
	if len(set) > 0 {
		update = append(bson.D{{Key: "$set", Value: set}}, update...)
	}
	return filter, update
}

// IncrementViews bumps the view counter without touching the version.
func (s *Store) IncrementViews(ctx context.Context, id string) error {
	res, err := s.trades.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment views for trade %s: %w: %w", id, ports.ErrUpdateFailed, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("trade %s not found for view: %w", id, ports.ErrNotFound)
	}
	return nil
}

// ListTrades returns trades matching filter, newest first.
func (s *Store) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.trades.Find(ctx, tradeFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	var docs []tradeDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode trades: %w", err)
	}
	out := make([]*domain.Trade, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func tradeFilter(f ports.TradeFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.ParticipantID != "" {
		q["$or"] = bson.A{
			bson.M{"ownerId": f.ParticipantID},
			bson.M{"joinerId": f.ParticipantID},
		}
	}
	return q
}
