// Package valuation computes the value of a traded item from its base value
// and the mutation and traits selected for it.
//
// Every function here is total: an id missing from the catalog degrades to
// "no modifier" instead of failing. Trade items are frozen snapshots, so a
// modifier deleted from the catalog later must not break valuation of
// historical selections.
package valuation

import (
	"github.com/shopspring/decimal"

	"brainrotMarket/internal/domain"
)

// ValuePrecision is the number of decimal places final values are rounded to.
const ValuePrecision = 6

// ResolveMutation returns the effective mutation for selectedID, or nil when
// nothing is selected or the id is not in the catalog.
func ResolveMutation(catalog []domain.Mutation, item *domain.Item, selectedID string) *domain.ResolvedModifier {
	if selectedID == "" {
		return nil
	}
	for _, m := range catalog {
		if m.ID != selectedID {
			continue
		}
		resolved := &domain.ResolvedModifier{
			ID:         m.ID,
			Name:       m.Name,
			Multiplier: m.Multiplier,
			Color:      m.Color,
			ImageURL:   m.ImageURL,
		}
		if o, ok := item.MutationOverride(m.ID); ok {
			resolved.Multiplier = o.Multiplier
			resolved.Overridden = true
			if o.ImageURL != "" {
				resolved.ImageURL = o.ImageURL
			}
		}
		return resolved
	}
	return nil
}

// ResolveTraits returns the effective traits in the order of selectedIDs.
// Ids not found in the catalog are dropped.
func ResolveTraits(catalog []domain.Trait, item *domain.Item, selectedIDs []string) []domain.ResolvedModifier {
	if len(selectedIDs) == 0 {
		return nil
	}
	byID := make(map[string]domain.Trait, len(catalog))
	for _, t := range catalog {
		byID[t.ID] = t
	}

	resolved := make([]domain.ResolvedModifier, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		t, ok := byID[id]
		if !ok {
			continue
		}
		r := domain.ResolvedModifier{
			ID:         t.ID,
			Name:       t.Name,
			Multiplier: t.Multiplier,
			ImageURL:   t.ImageURL,
		}
		if o, ok := item.TraitOverride(t.ID); ok {
			r.Multiplier = o.Multiplier
			r.Overridden = true
			if o.ImageURL != "" {
				r.ImageURL = o.ImageURL
			}
		}
		resolved = append(resolved, r)
	}
	return resolved
}

// TotalMultiplier adds the mutation and trait multipliers. An absent mutation
// contributes 0, not 1.
func TotalMultiplier(mutation *domain.ResolvedModifier, traits []domain.ResolvedModifier) decimal.Decimal {
	total := decimal.Zero
	if mutation != nil {
		total = total.Add(decimal.NewFromFloat(mutation.Multiplier))
	}
	for _, t := range traits {
		total = total.Add(decimal.NewFromFloat(t.Multiplier))
	}
	return total
}

// CalculateFinalValue applies the additive multiplier to baseValue.
// With no modifiers at all the base value is returned unchanged; otherwise the
// product is rounded half away from zero to ValuePrecision places.
func CalculateFinalValue(baseValue float64, mutation *domain.ResolvedModifier, traits []domain.ResolvedModifier) float64 {
	total := TotalMultiplier(mutation, traits)
	if total.IsZero() {
		return baseValue
	}
	return decimal.NewFromFloat(baseValue).Mul(total).Round(ValuePrecision).InexactFloat64()
}
