package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
	"brainrotMarket/internal/valuation"
)

const (
	// DefaultTradeTTL is how long a posted trade stays joinable.
	DefaultTradeTTL = 7 * 24 * time.Hour

	defaultListLimit = 50
	maxListLimit     = 200

	// maxTransitionAttempts bounds the optimistic retry loop: the first
	// attempt plus one retry against freshly read state.
	maxTransitionAttempts = 2
)

// CatalogReader is the read side of the catalog the service needs.
// Both the raw repository and catalog.Cache satisfy it.
type CatalogReader interface {
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	ListMutations(ctx context.Context) ([]domain.Mutation, error)
	ListTraits(ctx context.Context) ([]domain.Trait, error)
}

// Config holds the tunables of the trade lifecycle.
type Config struct {
	TradeTTL          time.Duration // Zero means DefaultTradeTTL
	FairnessThreshold float64       // Fraction, e.g. 0.05 for 5%
}

// ItemSelection is a client's choice of item and modifiers.
type ItemSelection struct {
	ItemID     string   `json:"itemId"`
	MutationID string   `json:"mutationId,omitempty"`
	TraitIDs   []string `json:"traitIds,omitempty"`
}

// CreateTradeRequest carries both sides of a new listing.
type CreateTradeRequest struct {
	Offering   []ItemSelection `json:"offeringItems"`
	LookingFor []ItemSelection `json:"lookingForItems"`
}

// Valuation is the priced form of one selection.
type Valuation struct {
	Item            domain.TradeItem          `json:"item"`
	Mutation        *domain.ResolvedModifier  `json:"mutation,omitempty"`
	Traits          []domain.ResolvedModifier `json:"traits"`
	TotalMultiplier float64                   `json:"totalMultiplier"`
}

// TradeService runs the trade lifecycle state machine.
type TradeService struct {
	cfg      Config
	logger   ports.Logger
	catalog  CatalogReader
	trades   ports.TradeRepository
	users    ports.UserRepository
	notifier ports.Notifier

	now   func() time.Time
	newID func() string
}

// NewTradeService creates a new trade service instance.
func NewTradeService(
	cfg Config,
	logger ports.Logger,
	catalog CatalogReader,
	trades ports.TradeRepository,
	users ports.UserRepository,
	notifier ports.Notifier,
) (*TradeService, error) {
	if logger == nil || catalog == nil || trades == nil || users == nil || notifier == nil {
		return nil, fmt.Errorf("missing required dependencies for TradeService")
	}
	if cfg.TradeTTL == 0 {
		cfg.TradeTTL = DefaultTradeTTL
	}
	if cfg.TradeTTL < 0 {
		return nil, fmt.Errorf("configuration TradeTTL must be positive")
	}
	if cfg.FairnessThreshold < 0 || cfg.FairnessThreshold >= 1 {
		return nil, fmt.Errorf("configuration FairnessThreshold must be in [0, 1)")
	}

	return &TradeService{
		cfg:      cfg,
		logger:   logger,
		catalog:  catalog,
		trades:   trades,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}, nil
}

// --- Valuation ---

// ValueItem prices a single selection against the current catalog.
func (s *TradeService) ValueItem(ctx context.Context, sel ItemSelection) (*Valuation, error) {
	mutations, traits, err := s.loadModifiers(ctx)
	if err != nil {
		return nil, err
	}
	return s.value(ctx, sel, mutations, traits)
}

func (s *TradeService) loadModifiers(ctx context.Context) ([]domain.Mutation, []domain.Trait, error) {
	mutations, err := s.catalog.ListMutations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list mutations: %w", err)
	}
	traits, err := s.catalog.ListTraits(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list traits: %w", err)
	}
	return mutations, traits, nil
}

func (s *TradeService) value(ctx context.Context, sel ItemSelection, mutations []domain.Mutation, traits []domain.Trait) (*Valuation, error) {
	if sel.ItemID == "" {
		return nil, fmt.Errorf("item id must be set: %w", ports.ErrValidation)
	}
	item, err := s.catalog.GetItem(ctx, sel.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", sel.ItemID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", sel.ItemID, ports.ErrNotFound)
	}

	mutation := valuation.ResolveMutation(mutations, item, sel.MutationID)
	resolvedTraits := valuation.ResolveTraits(traits, item, sel.TraitIDs)

	// Only modifiers that actually resolved are frozen into the snapshot.
	ti := domain.TradeItem{
		ItemID:     item.ID,
		Name:       item.Name,
		BaseValue:  item.BaseValue,
		TraitIDs:   make([]string, 0, len(resolvedTraits)),
		FinalValue: valuation.CalculateFinalValue(item.BaseValue, mutation, resolvedTraits),
	}
	if mutation != nil {
		ti.MutationID = mutation.ID
	}
	for _, t := range resolvedTraits {
		ti.TraitIDs = append(ti.TraitIDs, t.ID)
	}

	return &Valuation{
		Item:            ti,
		Mutation:        mutation,
		Traits:          resolvedTraits,
		TotalMultiplier: valuation.TotalMultiplier(mutation, resolvedTraits).InexactFloat64(),
	}, nil
}

// --- Creation and reads ---

// CreateTrade values both sides, classifies fairness and posts an active trade.
func (s *TradeService) CreateTrade(ctx context.Context, ownerID string, req CreateTradeRequest) (*domain.Trade, error) {
	if len(req.Offering) == 0 || len(req.LookingFor) == 0 {
		return nil, fmt.Errorf("offering and looking-for items must both be non-empty: %w", ports.ErrValidation)
	}

	mutations, traits, err := s.loadModifiers(ctx)
	if err != nil {
		return nil, err
	}
	offering, err := s.valueAll(ctx, req.Offering, mutations, traits)
	if err != nil {
		return nil, err
	}
	lookingFor, err := s.valueAll(ctx, req.LookingFor, mutations, traits)
	if err != nil {
		return nil, err
	}

	trade, err := domain.NewTrade(s.newID(), ownerID, offering, lookingFor, s.now(), s.cfg.TradeTTL)
	if err != nil {
		return nil, err
	}
	trade.Result, trade.ResultPercentage = valuation.Classify(trade.OfferingTotal, trade.LookingForTotal, s.cfg.FairnessThreshold)

	id, err := s.trades.CreateTrade(ctx, trade)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to persist trade", map[string]interface{}{"ownerID": ownerID})
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}
	trade.ID = id

	s.bumpStats(ctx, trade.ID, statDelta{ownerID, domain.StatTradesPosted})

	s.logger.Info(ctx, "Trade created", map[string]interface{}{
		"tradeID":         trade.ID,
		"ownerID":         ownerID,
		"offeringTotal":   trade.OfferingTotal,
		"lookingForTotal": trade.LookingForTotal,
		"result":          trade.Result,
	})
	return trade, nil
}

func (s *TradeService) valueAll(ctx context.Context, sels []ItemSelection, mutations []domain.Mutation, traits []domain.Trait) ([]domain.TradeItem, error) {
	items := make([]domain.TradeItem, 0, len(sels))
	for _, sel := range sels {
		v, err := s.value(ctx, sel, mutations, traits)
		if err != nil {
			return nil, err
		}
		items = append(items, v.Item)
	}
	return items, nil
}

// GetTrade reads a trade without side effects.
func (s *TradeService) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	return s.load(ctx, id)
}

// ViewTrade reads a trade and bumps its view counter. A failed bump is
// logged and otherwise ignored.
func (s *TradeService) ViewTrade(ctx context.Context, id string) (*domain.Trade, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.trades.IncrementViews(ctx, id); err != nil {
		s.logger.Warn(ctx, "Failed to increment trade views", map[string]interface{}{"tradeID": id, "error": err.Error()})
		return t, nil
	}
	t.Views++
	return t, nil
}

// ListTrades returns trades matching filter, newest first.
func (s *TradeService) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, ports.ErrValidation)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	trades, err := s.trades.ListTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// GetUserStats returns a user's denormalized trade counters.
func (s *TradeService) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	stats, err := s.users.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for user %s: %w", userID, err)
	}
	return stats, nil
}

func (s *TradeService) load(ctx context.Context, id string) (*domain.Trade, error) {
	t, err := s.trades.GetTrade(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade %s: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
	}
	return t, nil
}

// --- Transitions ---

// decideFunc validates a transition against the current trade and returns
// the fields to change.
type decideFunc func(t *domain.Trade, now time.Time) (ports.TradePatch, error)

// transition commits the patch chosen by decide with a compare-and-swap on
// status and version. A lost race is re-evaluated once against fresh state;
// losing again reports ErrInvalidState.
func (s *TradeService) transition(ctx context.Context, id string, decide decideFunc) (*domain.Trade, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		t, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		patch, err := decide(t, s.now())
		if err != nil {
			return nil, err
		}

		guard := ports.TradeGuard{Status: t.Status, Version: t.Version}
		err = s.trades.UpdateTrade(ctx, id, guard, patch)
		if err == nil {
			patch.Apply(t)
			return t, nil
		}
		if errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
		}
		if !errors.Is(err, ports.ErrConflict) {
			s.logger.Error(ctx, err, "Failed to update trade", map[string]interface{}{"tradeID": id})
			return nil, fmt.Errorf("failed to update trade %s: %w", id, err)
		}
		s.logger.Debug(ctx, "Trade update lost a race", map[string]interface{}{"tradeID": id, "attempt": attempt})
	}
	return nil, fmt.Errorf("trade %s changed concurrently: %w", id, ports.ErrInvalidState)
}

// JoinTrade registers userID as the counterparty of an active trade. Expiry
// is checked here and only here: joining an expired trade fails it and
// returns ErrExpired.
func (s *TradeService) JoinTrade(ctx context.Context, id, userID string) (*domain.Trade, error) {
	var expired bool
	t, err := s.transition(ctx, id, func(t *domain.Trade, now time.Time) (ports.TradePatch, error) {
		expired = false
		if userID == "" {
			return ports.TradePatch{}, fmt.Errorf("anonymous join: %w", ports.ErrForbidden)
		}
		if userID == t.OwnerID {
			return ports.TradePatch{}, fmt.Errorf("trade %s: %w", t.ID, ports.ErrSelfJoin)
		}
		if t.Status != domain.TradeActive {
			return ports.TradePatch{}, fmt.Errorf("cannot join trade %s in status %s: %w", t.ID, t.Status, ports.ErrInvalidState)
		}
		if t.IsExpired(now) {
			expired = true
			return ports.TradePatch{
				Status:     statusPtr(domain.TradeFailed),
				FailReason: reasonPtr(domain.FailReasonExpired),
				FailedAt:   &now,
			}, nil
		}
		return ports.TradePatch{
			Status:   statusPtr(domain.TradePending),
			JoinerID: &userID,
			JoinedAt: &now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		s.logger.Info(ctx, "Trade expired on join attempt", map[string]interface{}{"tradeID": id, "userID": userID})
		s.notify(ctx, t, t.OwnerID, domain.NotifyTradeExpired, userID)
		return t, fmt.Errorf("trade %s expired at %s: %w", id, t.ExpiresAt.Format(time.RFC3339), ports.ErrExpired)
	}

	s.logger.Info(ctx, "Trade joined", map[string]interface{}{"tradeID": id, "joinerID": userID})
	s.notify(ctx, t, t.OwnerID, domain.NotifyTradeJoined, userID)
	return t, nil
}

// AcceptTrade records one party's confirmation of a pending trade. The
// second confirmation completes it.
func (s *TradeService) AcceptTrade(ctx context.Context, id, userID string) (*domain.Trade, error) {
	t, err := s.transition(ctx, id, func(t *domain.Trade, now time.Time) (ports.TradePatch, error) {
		if !t.IsParticipant(userID) {
			return ports.TradePatch{}, fmt.Errorf("user %s on trade %s: %w", userID, t.ID, ports.ErrForbidden)
		}
		if t.Status != domain.TradePending {
			return ports.TradePatch{}, fmt.Errorf("cannot accept trade %s in status %s: %w", t.ID, t.Status, ports.ErrInvalidState)
		}
		if t.HasAccepted(userID) {
			return ports.TradePatch{}, fmt.Errorf("user %s on trade %s: %w", userID, t.ID, ports.ErrAlreadyAccepted)
		}

		accepted := true
		patch := ports.TradePatch{AcceptedAt: &now}
		otherAccepted := t.OwnerAccepted
		if userID == t.OwnerID {
			patch.OwnerAccepted = &accepted
			otherAccepted = t.JoinerAccepted
		} else {
			patch.JoinerAccepted = &accepted
		}
		if otherAccepted {
			patch.Status = statusPtr(domain.TradeCompleted)
			patch.CompletedAt = &now
		}
		return patch, nil
	})
	if err != nil {
		return nil, err
	}

	if t.Status == domain.TradeCompleted {
		s.bumpStats(ctx, t.ID,
			statDelta{t.OwnerID, domain.StatTradesCompleted},
			statDelta{t.JoinerID, domain.StatTradesCompleted},
			statDelta{t.JoinerID, domain.StatTradesAccepted},
		)
		s.logger.Info(ctx, "Trade completed", map[string]interface{}{"tradeID": id, "ownerID": t.OwnerID, "joinerID": t.JoinerID})
		s.notify(ctx, t, t.OwnerID, domain.NotifyTradeCompleted, userID)
		s.notify(ctx, t, t.JoinerID, domain.NotifyTradeCompleted, userID)
		return t, nil
	}

	s.logger.Info(ctx, "Trade accepted by one party", map[string]interface{}{"tradeID": id, "userID": userID})
	s.notify(ctx, t, t.Counterparty(userID), domain.NotifyTradeAccepted, userID)
	return t, nil
}

// DeclineTrade fails a pending trade on behalf of either participant.
func (s *TradeService) DeclineTrade(ctx context.Context, id, userID string) (*domain.Trade, error) {
	t, err := s.transition(ctx, id, func(t *domain.Trade, now time.Time) (ports.TradePatch, error) {
		if !t.IsParticipant(userID) {
			return ports.TradePatch{}, fmt.Errorf("user %s on trade %s: %w", userID, t.ID, ports.ErrForbidden)
		}
		if t.Status != domain.TradePending {
			return ports.TradePatch{}, fmt.Errorf("cannot decline trade %s in status %s: %w", t.ID, t.Status, ports.ErrInvalidState)
		}
		reason := domain.FailReasonJoinerDeclined
		if userID == t.OwnerID {
			reason = domain.FailReasonOwnerDeclined
		}
		return ports.TradePatch{
			Status:     statusPtr(domain.TradeFailed),
			FailReason: &reason,
			FailedAt:   &now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpStats(ctx, t.ID,
		statDelta{t.OwnerID, domain.StatTradesFailed},
		statDelta{t.JoinerID, domain.StatTradesFailed},
	)
	s.logger.Info(ctx, "Trade declined", map[string]interface{}{"tradeID": id, "userID": userID, "reason": t.FailReason})
	s.notify(ctx, t, t.Counterparty(userID), domain.NotifyTradeDeclined, userID)
	return t, nil
}

// CancelTrade withdraws a trade that has not completed. Only the owner may cancel.
func (s *TradeService) CancelTrade(ctx context.Context, id, userID string) (*domain.Trade, error) {
	t, err := s.transition(ctx, id, func(t *domain.Trade, now time.Time) (ports.TradePatch, error) {
		if userID == "" || userID != t.OwnerID {
			return ports.TradePatch{}, fmt.Errorf("user %s on trade %s: %w", userID, t.ID, ports.ErrForbidden)
		}
		if t.Status != domain.TradeActive && t.Status != domain.TradePending {
			return ports.TradePatch{}, fmt.Errorf("cannot cancel trade %s in status %s: %w", t.ID, t.Status, ports.ErrInvalidState)
		}
		return ports.TradePatch{
			Status:     statusPtr(domain.TradeCancelled),
			FailReason: reasonPtr(domain.FailReasonCancelled),
			FailedAt:   &now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Trade cancelled", map[string]interface{}{"tradeID": id})
	if t.JoinerID != "" {
		s.notify(ctx, t, t.JoinerID, domain.NotifyTradeCancelled, userID)
	}
	return t, nil
}

// --- Side effects ---

type statDelta struct {
	userID string
	stat   domain.StatName
}

// bumpStats applies +1 increments after a committed transition. The
// transition cannot be rolled back at this point, so failures are logged.
func (s *TradeService) bumpStats(ctx context.Context, tradeID string, deltas ...statDelta) {
	for _, d := range deltas {
		if d.userID == "" {
			continue
		}
		if err := s.users.IncrementUserStat(ctx, d.userID, d.stat, 1); err != nil {
			s.logger.Error(ctx, err, "Failed to increment user stat", map[string]interface{}{
				"tradeID": tradeID,
				"userID":  d.userID,
				"stat":    d.stat,
			})
		}
	}
}

func (s *TradeService) notify(ctx context.Context, t *domain.Trade, to string, typ domain.NotificationType, actorID string) {
	if to == "" {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		UserID:  to,
		Type:    typ,
		TradeID: t.ID,
		Payload: map[string]interface{}{
			"status":  string(t.Status),
			"actorId": actorID,
		},
		CreatedAt: s.now(),
	})
}

func statusPtr(s domain.TradeStatus) *domain.TradeStatus { return &s }
func reasonPtr(r domain.FailReason) *domain.FailReason   { return &r }
