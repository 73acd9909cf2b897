package mongostore

import (
	"time"

	"brainrotMarket/internal/domain"
)

type overrideDoc struct {
	Multiplier float64 `bson:"multiplier"`
	ImageURL   string  `bson:"imageUrl,omitempty"`
}

type itemDoc struct {
	ID                 string                 `bson:"_id"`
	Name               string                 `bson:"name"`
	BaseValue          float64                `bson:"baseValue"`
	Rarity             string                 `bson:"rarity"`
	Demand             string                 `bson:"demand"`
	ImageURL           string                 `bson:"imageUrl,omitempty"`
	AllowedMutationIDs []string               `bson:"allowedMutationIds"`
	AllowedTraitIDs    []string               `bson:"allowedTraitIds"`
	MutationOverrides  map[string]overrideDoc `bson:"mutationOverrides,omitempty"`
	TraitOverrides     map[string]overrideDoc `bson:"traitOverrides,omitempty"`
}

type mutationDoc struct {
	ID         string  `bson:"_id"`
	Name       string  `bson:"name"`
	Multiplier float64 `bson:"multiplier"`
	IsActive   bool    `bson:"isActive"`
	Color      string  `bson:"color,omitempty"`
	ImageURL   string  `bson:"imageUrl,omitempty"`
}

type traitDoc struct {
	ID         string  `bson:"_id"`
	Name       string  `bson:"name"`
	Multiplier float64 `bson:"multiplier"`
	IsActive   bool    `bson:"isActive"`
	ImageURL   string  `bson:"imageUrl,omitempty"`
}

type tradeItemDoc struct {
	ItemID     string   `bson:"brainrotId"`
	Name       string   `bson:"name"`
	BaseValue  float64  `bson:"baseValue"`
	MutationID string   `bson:"mutationId,omitempty"`
	TraitIDs   []string `bson:"traitIds"`
	FinalValue float64  `bson:"finalValue"`
}

type tradeDoc struct {
	ID               string         `bson:"_id"`
	OwnerID          string         `bson:"ownerId"`
	JoinerID         string         `bson:"joinerId,omitempty"`
	OfferingItems    []tradeItemDoc `bson:"offeringItems"`
	LookingForItems  []tradeItemDoc `bson:"lookingForItems"`
	OfferingTotal    float64        `bson:"offeringTotal"`
	LookingForTotal  float64        `bson:"lookingForTotal"`
	ValueDifference  float64        `bson:"valueDifference"`
	Result           string         `bson:"result"`
	ResultPercentage float64        `bson:"resultPercentage"`
	Status           string         `bson:"status"`
	OwnerAccepted    bool           `bson:"ownerAccepted"`
	JoinerAccepted   bool           `bson:"joinerAccepted"`
	FailReason       string         `bson:"failReason,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt"`
	JoinedAt         *time.Time     `bson:"joinedAt,omitempty"`
	AcceptedAt       *time.Time     `bson:"acceptedAt,omitempty"`
	CompletedAt      *time.Time     `bson:"completedAt,omitempty"`
	FailedAt         *time.Time     `bson:"failedAt,omitempty"`
	ExpiresAt        time.Time      `bson:"expiresAt"`
	Views            int64          `bson:"views"`
	Version          int64          `bson:"version"`
}

type userDoc struct {
	ID              string `bson:"_id"`
	TradesPosted    int64  `bson:"tradesPosted"`
	TradesAccepted  int64  `bson:"tradesAccepted"`
	TradesCompleted int64  `bson:"tradesCompleted"`
	TradesFailed    int64  `bson:"tradesFailed"`
}

type notificationDoc struct {
	ID        string                 `bson:"_id"`
	UserID    string                 `bson:"userId"`
	Type      string                 `bson:"type"`
	TradeID   string                 `bson:"tradeId"`
	Payload   map[string]interface{} `bson:"payload,omitempty"`
	Read      bool                   `bson:"read"`
	CreatedAt time.Time              `bson:"createdAt"`
}

// --- Conversions ---

func fromItem(i *domain.Item) itemDoc {
	return itemDoc{
		ID:                 i.ID,
		Name:               i.Name,
		BaseValue:          i.BaseValue,
		Rarity:             string(i.Rarity),
		Demand:             string(i.Demand),
		ImageURL:           i.ImageURL,
		AllowedMutationIDs: nonNil(i.AllowedMutationIDs),
		AllowedTraitIDs:    nonNil(i.AllowedTraitIDs),
		MutationOverrides:  fromOverrides(i.MutationOverrides),
		TraitOverrides:     fromOverrides(i.TraitOverrides),
	}
}

func (d itemDoc) toDomain() *domain.Item {
	return &domain.Item{
		ID:                 d.ID,
		Name:               d.Name,
		BaseValue:          d.BaseValue,
		Rarity:             domain.Rarity(d.Rarity),
		Demand:             domain.Demand(d.Demand),
		ImageURL:           d.ImageURL,
		AllowedMutationIDs: nonNil(d.AllowedMutationIDs),
		AllowedTraitIDs:    nonNil(d.AllowedTraitIDs),
		MutationOverrides:  toOverrides(d.MutationOverrides),
		TraitOverrides:     toOverrides(d.TraitOverrides),
	}
}

func fromOverrides(m map[string]domain.Override) map[string]overrideDoc {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]overrideDoc, len(m))
	for k, v := range m {
		out[k] = overrideDoc{Multiplier: v.Multiplier, ImageURL: v.ImageURL}
	}
	return out
}

func toOverrides(m map[string]overrideDoc) map[string]domain.Override {
	out := make(map[string]domain.Override, len(m))
	for k, v := range m {
		out[k] = domain.Override{Multiplier: v.Multiplier, ImageURL: v.ImageURL}
	}
	return out
}

func fromTradeItems(items []domain.TradeItem) []tradeItemDoc {
	out := make([]tradeItemDoc, 0, len(items))
	for _, it := range items {
		out = append(out, tradeItemDoc{
			ItemID:     it.ItemID,
			Name:       it.Name,
			BaseValue:  it.BaseValue,
			MutationID: it.MutationID,
			TraitIDs:   nonNil(it.TraitIDs),
			FinalValue: it.FinalValue,
		})
	}
	return out
}

func toTradeItems(docs []tradeItemDoc) []domain.TradeItem {
	out := make([]domain.TradeItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.TradeItem{
			ItemID:     d.ItemID,
			Name:       d.Name,
			BaseValue:  d.BaseValue,
			MutationID: d.MutationID,
			TraitIDs:   nonNil(d.TraitIDs),
			FinalValue: d.FinalValue,
		})
	}
	return out
}

func fromTrade(t *domain.Trade) tradeDoc {
	return tradeDoc{
		ID:               t.ID,
		OwnerID:          t.OwnerID,
		JoinerID:         t.JoinerID,
		OfferingItems:    fromTradeItems(t.OfferingItems),
		LookingForItems:  fromTradeItems(t.LookingForItems),
		OfferingTotal:    t.OfferingTotal,
		LookingForTotal:  t.LookingForTotal,
		ValueDifference:  t.ValueDifference,
		Result:           string(t.Result),
		ResultPercentage: t.ResultPercentage,
		Status:           string(t.Status),
		OwnerAccepted:    t.OwnerAccepted,
		JoinerAccepted:   t.JoinerAccepted,
		FailReason:       string(t.FailReason),
		CreatedAt:        t.CreatedAt,
		JoinedAt:         t.JoinedAt,
		AcceptedAt:       t.AcceptedAt,
		CompletedAt:      t.CompletedAt,
		FailedAt:         t.FailedAt,
		ExpiresAt:        t.ExpiresAt,
		Views:            t.Views,
		Version:          t.Version,
	}
}

func (d tradeDoc) toDomain() *domain.Trade {
	return &domain.Trade{
		ID:               d.ID,
		OwnerID:          d.OwnerID,
		JoinerID:         d.JoinerID,
		OfferingItems:    toTradeItems(d.OfferingItems),
		LookingForItems:  toTradeItems(d.LookingForItems),
		OfferingTotal:    d.OfferingTotal,
		LookingForTotal:  d.LookingForTotal,
		ValueDifference:  d.ValueDifference,
		Result:           domain.TradeResult(d.Result),
		ResultPercentage: d.ResultPercentage,
		Status:           domain.TradeStatus(d.Status),
		OwnerAccepted:    d.OwnerAccepted,
		JoinerAccepted:   d.JoinerAccepted,
		FailReason:       domain.FailReason(d.FailReason),
		CreatedAt:        d.CreatedAt.UTC(),
		JoinedAt:         utcPtr(d.JoinedAt),
		AcceptedAt:       utcPtr(d.AcceptedAt),
		CompletedAt:      utcPtr(d.CompletedAt),
		FailedAt:         utcPtr(d.FailedAt),
		ExpiresAt:        d.ExpiresAt.UTC(),
		Views:            d.Views,
		Version:          d.Version,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
