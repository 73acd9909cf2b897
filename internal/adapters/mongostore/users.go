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

// IncrementUserStat atomically adds delta to one counter, creating the user document if needed.
func (s *Store) IncrementUserStat(ctx context.Context, userID string, stat domain.StatName, delta int64) error {
	if !stat.Valid() {
		return fmt.Errorf("unknown user stat %q: %w", stat, ports.ErrValidation)
	}
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$inc": bson.M{string(stat): delta}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to increment %s for user %s: %w: %w", stat, userID, ports.ErrUpdateFailed, err)
	}
	s.logger.Debug(ctx, "User stat incremented", map[string]interface{}{"userID": userID, "stat": stat, "delta": delta})
	return nil
}

// GetUserStats returns the counters; a user without a document gets zeroes.
func (s *Store) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to query stats for user %s: %w: %w", userID, ports.ErrQueryFailed, err)
	}
	return &domain.UserStats{
		UserID:          userID,
		TradesPosted:    doc.TradesPosted,
		TradesAccepted:  doc.TradesAccepted,
		TradesCompleted: doc.TradesCompleted,
		TradesFailed:    doc.TradesFailed,
	}, nil
}

// SaveNotification stores a delivered notification.
func (s *Store) SaveNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.notifications.InsertOne(ctx, notificationDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		TradeID:   n.TradeID,
		Payload:   n.Payload,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("notification %s: %w", n.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert notification %s: %w: %w", n.ID, ports.ErrQueryFailed, err)
	}
	return nil
}

// ListNotifications returns the most recent notifications for a user, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.notifications.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %s: %w: %w", userID, ports.ErrQueryFailed, err)
	}
	var docs []notificationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	out := make([]*domain.Notification, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.Notification{
			ID:        d.ID,
			UserID:    d.UserID,
			Type:      domain.NotificationType(d.Type),
			TradeID:   d.TradeID,
			Payload:   d.Payload,
			Read:      d.Read,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}
