package valuation

import (
	"github.com/shopspring/decimal"

	"brainrotMarket/internal/domain"
)

// DefaultFairnessThreshold is the relative difference (5%) at or below which a
// trade counts as fair.
const DefaultFairnessThreshold = 0.05

var hundred = decimal.NewFromInt(100)

// Classify labels a trade from the owner's perspective. The percentage is the
// value difference relative to the larger side, rounded to two places.
// Offering more than you ask for is a loss; asking for more is a win.
func Classify(offeringTotal, lookingForTotal, threshold float64) (domain.TradeResult, float64) {
	offering := decimal.NewFromFloat(offeringTotal)
	lookingFor := decimal.NewFromFloat(lookingForTotal)

	larger := decimal.Max(offering, lookingFor)
	if !larger.IsPositive() {
		return domain.ResultFair, 0
	}

	pct := offering.Sub(lookingFor).Abs().Div(larger).Mul(hundred)
	rounded := pct.Round(2).InexactFloat64()

	if pct.LessThanOrEqual(decimal.NewFromFloat(threshold).Mul(hundred)) {
		return domain.ResultFair, rounded
	}
	if offering.GreaterThan(lookingFor) {
		return domain.ResultLoss, rounded
	}
	return domain.ResultWin, rounded
}
