package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus represents the lifecycle state of a trade listing.
type TradeStatus string

const (
	TradeActive    TradeStatus = "active"
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
	TradeCancelled TradeStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeCompleted || s == TradeFailed || s == TradeCancelled
}

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeActive, TradePending, TradeCompleted, TradeFailed, TradeCancelled:
		return true
	}
	return false
}

// FailReason indicates why a trade left the happy path.
type FailReason string

const (
	FailReasonNone           FailReason = ""
	FailReasonExpired        FailReason = "expired"
	FailReasonOwnerDeclined  FailReason = "owner_declined"
	FailReasonJoinerDeclined FailReason = "joiner_declined"
	FailReasonCancelled      FailReason = "cancelled"
)

// TradeResult is the fairness classification from the owner's perspective.
type TradeResult string

const (
	ResultWin  TradeResult = "win"
	ResultLoss TradeResult = "loss"
	ResultFair TradeResult = "fair"
)

// TradeItem is a frozen snapshot of one valued item inside a trade.
// FinalValue is computed at submission and never recomputed.
type TradeItem struct {
	ItemID     string   `json:"itemId"`
	Name       string   `json:"name"`
	BaseValue  float64  `json:"baseValue"`
	MutationID string   `json:"mutationId,omitempty"`
	TraitIDs   []string `json:"traitIds"`
	FinalValue float64  `json:"finalValue"`
}

// Trade is the aggregate root of the trade lifecycle.
type Trade struct {
	ID       string `json:"id"`
	OwnerID  string `json:"ownerId"`
	JoinerID string `json:"joinerId,omitempty"` // Empty until someone joins

	OfferingItems   []TradeItem `json:"offeringItems"`
	LookingForItems []TradeItem `json:"lookingForItems"`

	OfferingTotal    float64     `json:"offeringTotal"`
	LookingForTotal  float64     `json:"lookingForTotal"`
	ValueDifference  float64     `json:"valueDifference"`
	Result           TradeResult `json:"result"`
	ResultPercentage float64     `json:"resultPercentage"`

	Status         TradeStatus `json:"status"`
	OwnerAccepted  bool        `json:"ownerAccepted"`
	JoinerAccepted bool        `json:"joinerAccepted"`
	FailReason     FailReason  `json:"failReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	JoinedAt    *time.Time `json:"joinedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"` // Latest acceptance by either party
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"` // Also set on cancellation
	ExpiresAt   time.Time  `json:"expiresAt"`

	Views   int64 `json:"views"`
	Version int64 `json:"version"` // Bumped by every persisted transition
}

// NewTrade validates the item lists and builds an active trade with totals
// filled in. Result classification is left to the caller.
func NewTrade(id, ownerID string, offering, lookingFor []TradeItem, now time.Time, ttl time.Duration) (*Trade, error) {
	var errs []string
	if strings.TrimSpace(ownerID) == "" {
		errs = append(errs, "owner must be set")
	}
	if len(offering) == 0 {
		errs = append(errs, "offering items must not be empty")
	}
	if len(lookingFor) == 0 {
		errs = append(errs, "looking-for items must not be empty")
	}
	if ttl <= 0 {
		errs = append(errs, "ttl must be positive")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("trade: %s: %w", strings.Join(errs, "; "), ErrValidation)
	}

	offeringTotal := SumFinalValues(offering)
	lookingForTotal := SumFinalValues(lookingFor)
	diff := decimal.NewFromFloat(offeringTotal).Sub(decimal.NewFromFloat(lookingForTotal)).Abs()

	return &Trade{
		ID:              id,
		OwnerID:         ownerID,
		OfferingItems:   offering,
		LookingForItems: lookingFor,
		OfferingTotal:   offeringTotal,
		LookingForTotal: lookingForTotal,
		ValueDifference: diff.InexactFloat64(),
		Status:          TradeActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}, nil
}

// SumFinalValues adds up the frozen final values without float drift.
func SumFinalValues(items []TradeItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.FinalValue))
	}
	return total.InexactFloat64()
}

// IsParticipant reports whether userID is the owner or the joiner.
func (t *Trade) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == t.OwnerID || (t.JoinerID != "" && userID == t.JoinerID)
}

// IsExpired reports whether now is at or past the expiry instant.
func (t *Trade) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HasAccepted reports whether the given participant already accepted.
func (t *Trade) HasAccepted(userID string) bool {
	switch userID {
	case t.OwnerID:
		return t.OwnerAccepted
	case t.JoinerID:
		return t.JoinerAccepted
	}
	return false
}

// Counterparty returns the other participant's id, or "" if there is none.
func (t *Trade) Counterparty(userID string) string {
	switch userID {
	case t.OwnerID:
		return t.JoinerID
	case t.JoinerID:
		return t.OwnerID
	}
	return ""
}
