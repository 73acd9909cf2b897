package domain

import "errors"

// ErrValidation marks malformed input rejected by a constructor.
// ports.ErrValidation aliases it so callers can match either.
var ErrValidation = errors.New("validation failed")

// Rarity is the catalog rarity tier of an item.
type Rarity string

const (
	RarityCommon      Rarity = "common"
	RarityRare        Rarity = "rare"
	RarityEpic        Rarity = "epic"
	RarityLegendary   Rarity = "legendary"
	RarityMythic      Rarity = "mythic"
	RarityBrainrotGod Rarity = "brainrot_god"
	RaritySecret      Rarity = "secret"
)

// Valid reports whether r is a known rarity tier.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic, RarityBrainrotGod, RaritySecret:
		return true
	}
	return false
}

// Demand is the admin-assigned market demand of an item.
type Demand string

const (
	DemandLow      Demand = "low"
	DemandHigh     Demand = "high"
	DemandVeryHigh Demand = "very_high"
)

// Valid reports whether d is a known demand level.
func (d Demand) Valid() bool {
	switch d {
	case DemandLow, DemandHigh, DemandVeryHigh:
		return true
	}
	return false
}
