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

var statColumns = map[domain.StatName]string{
	domain.StatTradesPosted:    "trades_posted",
	domain.StatTradesAccepted:  "trades_accepted",
	domain.StatTradesCompleted: "trades_completed",
	domain.StatTradesFailed:    "trades_failed",
}

// --- UserRepository Implementation ---

// IncrementUserStat adds delta to one counter in a single upsert statement.
func (r *Repository) IncrementUserStat(ctx context.Context, userID string, stat domain.StatName, delta int64) error {
	col, ok := statColumns[stat]
	if !ok {
		return fmt.Errorf("unknown user stat %q: %w", stat, ports.ErrValidation)
	}

	query := `INSERT INTO users (user_id, ` + col + `) VALUES (?, ?)
	ON CONFLICT(user_id) DO UPDATE SET ` + col + ` = ` + col + ` + excluded.` + col

	if _, err := r.db.ExecContext(ctx, query, userID, delta); err != nil {
		return fmt.Errorf("failed to increment %s for user %s: %w: %w", stat, userID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "User stat incremented", map[string]interface{}{"userID": userID, "stat": stat, "delta": delta})
	return nil
}

// GetUserStats returns the counters; a user without a record gets zeroes.
func (r *Repository) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	const query = `
	SELECT trades_posted, trades_accepted, trades_completed, trades_failed
	FROM users WHERE user_id = ?`

	s := &domain.UserStats{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.TradesPosted, &s.TradesAccepted, &s.TradesCompleted, &s.TradesFailed)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query stats for user %s: %w: %w", userID, ports.ErrQueryFailed, err)
	}
	return s, nil
}

// --- NotificationRepository Implementation ---

// SaveNotification stores a delivered notification.
func (r *Repository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload of notification %s: %w", n.ID, err)
	}
	const query = `
	INSERT INTO notifications (id, user_id, type, trade_id, payload, read, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.TradeID, string(payload), n.Read, n.CreatedAt.UTC())
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("notification %s: %w", n.ID, ports.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert notification %s: %w: %w", n.ID, ports.ErrQueryFailed, err)
	}
	return nil
}

// ListNotifications returns the most recent notifications for a user, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	const query = `
	SELECT id, user_id, type, trade_id, payload, read, created_at
	FROM notifications
	WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for user %s: %w: %w", userID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make([]*domain.Notification, 0)
	for rows.Next() {
		n := &domain.Notification{}
		var typ, payload string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.TradeID, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		n.CreatedAt = n.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of notification %s: %w", n.ID, err)
		}
		out = append(out, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return out, nil
}
