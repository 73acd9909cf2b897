package ports

import (
	"context"
	"time"

	"brainrotMarket/internal/domain"
)

// CatalogRepository reads (and, for admin tooling, writes) catalog entries.
// The trading core only uses the read side.
type CatalogRepository interface {
	// GetItem retrieves an item by ID. Returns nil, nil if not found.
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	// ListMutations returns the full mutation catalog.
	ListMutations(ctx context.Context) ([]domain.Mutation, error)
	// ListTraits returns the full trait catalog.
	ListTraits(ctx context.Context) ([]domain.Trait, error)

	UpsertItem(ctx context.Context, item *domain.Item) error
	UpsertMutation(ctx context.Context, m *domain.Mutation) error
	UpsertTrait(ctx context.Context, t *domain.Trait) error
}

// TradeGuard is the expected prior state for a conditional trade update.
type TradeGuard struct {
	Status  domain.TradeStatus
	Version int64
}

// TradePatch lists the fields a transition changes. Nil fields are left untouched.
type TradePatch struct {
	Status         *domain.TradeStatus
	JoinerID       *string
	OwnerAccepted  *bool
	JoinerAccepted *bool
	FailReason     *domain.FailReason
	JoinedAt       *time.Time
	AcceptedAt     *time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time
}

// Apply copies the set fields of p onto t and bumps its version.
func (p TradePatch) Apply(t *domain.Trade) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.JoinerID != nil {
		t.JoinerID = *p.JoinerID
	}
	if p.OwnerAccepted != nil {
		t.OwnerAccepted = *p.OwnerAccepted
	}
	if p.JoinerAccepted != nil {
		t.JoinerAccepted = *p.JoinerAccepted
	}
	if p.FailReason != nil {
		t.FailReason = *p.FailReason
	}
	if p.JoinedAt != nil {
		t.JoinedAt = p.JoinedAt
	}
	if p.AcceptedAt != nil {
		t.AcceptedAt = p.AcceptedAt
	}
	if p.CompletedAt != nil {
		t.CompletedAt = p.CompletedAt
	}
	if p.FailedAt != nil {
		t.FailedAt = p.FailedAt
	}
	t.Version++
}

// TradeFilter narrows ListTrades.
type TradeFilter struct {
	Status        domain.TradeStatus // Empty matches all
	ParticipantID string             // Owner or joiner; empty matches all
	Limit         int                // <= 0 means the adapter default
}

// TradeRepository persists trade documents.
type TradeRepository interface {
	// CreateTrade saves a new trade and returns its ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (string, error)
	// GetTrade retrieves a trade by ID. Returns nil, nil if not found.
	GetTrade(ctx context.Context, id string) (*domain.Trade, error)
	// UpdateTrade applies patch only if the stored trade still matches guard.
	// Returns ErrConflict when it does not and ErrNotFound when the trade is gone.
	UpdateTrade(ctx context.Context, id string, guard TradeGuard, patch TradePatch) error
	// IncrementViews bumps the view counter without touching the version.
	IncrementViews(ctx context.Context, id string) error
	// ListTrades returns trades newest first.
	ListTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, error)
}

// UserRepository owns the denormalized per-user trade counters.
type UserRepository interface {
	// IncrementUserStat atomically adds delta to one counter, creating the user record if needed.
	IncrementUserStat(ctx context.Context, userID string, stat domain.StatName, delta int64) error
	// GetUserStats returns the counters; a user without a record gets zeroes.
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)
}

// NotificationRepository stores delivered notifications.
type NotificationRepository interface {
	SaveNotification(ctx context.Context, n *domain.Notification) error
	// ListNotifications returns the most recent notifications for a user, newest first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
}
