package valuation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainrotMarket/internal/domain"
)

func testCatalog() ([]domain.Mutation, []domain.Trait) {
	mutations := []domain.Mutation{
		{ID: "gold", Name: "Gold", Multiplier: 1.25, IsActive: true, Color: "#ffd700", ImageURL: "gold.png"},
		{ID: "diamond", Name: "Diamond", Multiplier: 1.5, IsActive: true},
		{ID: "rainbow", Name: "Rainbow", Multiplier: 10, IsActive: true},
	}
	traits := []domain.Trait{
		{ID: "taco", Name: "Taco", Multiplier: 2, IsActive: true},
		{ID: "zombie", Name: "Zombie", Multiplier: 4, IsActive: true, ImageURL: "zombie.png"},
		{ID: "nyan", Name: "Nyan", Multiplier: 5, IsActive: true},
	}
	return mutations, traits
}

func testItem(t *testing.T) *domain.Item {
	t.Helper()
	item, err := domain.NewItem("tralalero", "Tralalero Tralala", 100, domain.RarityBrainrotGod, domain.DemandHigh)
	require.NoError(t, err)
	require.NoError(t, item.AllowMutation("gold", nil))
	require.NoError(t, item.AllowMutation("rainbow", &domain.Override{Multiplier: 12, ImageURL: "tralalero-rainbow.png"}))
	require.NoError(t, item.AllowTrait("taco", nil))
	require.NoError(t, item.AllowTrait("zombie", &domain.Override{Multiplier: 3}))
	return item
}

func TestResolveMutation(t *testing.T) {
	mutations, _ := testCatalog()
	item := testItem(t)

	tests := []struct {
		name       string
		selectedID string
		want       *domain.ResolvedModifier
	}{
		{name: "nothing selected", selectedID: "", want: nil},
		{name: "unknown id degrades to absent", selectedID: "deleted-mutation", want: nil},
		{
			name:       "catalog multiplier",
			selectedID: "gold",
			want:       &domain.ResolvedModifier{ID: "gold", Name: "Gold", Multiplier: 1.25, Color: "#ffd700", ImageURL: "gold.png"},
		},
		{
			name:       "item override supersedes catalog",
			selectedID: "rainbow",
			want:       &domain.ResolvedModifier{ID: "rainbow", Name: "Rainbow", Multiplier: 12, ImageURL: "tralalero-rainbow.png", Overridden: true},
		},
		{
			name:       "mutation outside allowed set still resolves",
			selectedID: "diamond",
			want:       &domain.ResolvedModifier{ID: "diamond", Name: "Diamond", Multiplier: 1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMutation(mutations, item, tt.selectedID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveMutation() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveMutation_IgnoresUnusableOverride(t *testing.T) {
	mutations, _ := testCatalog()
	item := &domain.Item{
		ID:                "legacy",
		MutationOverrides: map[string]domain.Override{"gold": {Multiplier: 0}, "diamond": {Multiplier: -3}},
	}

	gold := ResolveMutation(mutations, item, "gold")
	require.NotNil(t, gold)
	assert.Equal(t, 1.25, gold.Multiplier)
	assert.False(t, gold.Overridden)

	diamond := ResolveMutation(mutations, item, "diamond")
	require.NotNil(t, diamond)
	assert.Equal(t, 1.5, diamond.Multiplier)
}

func TestResolveMutation_NilItem(t *testing.T) {
	mutations, _ := testCatalog()
	got := ResolveMutation(mutations, nil, "gold")
	require.NotNil(t, got)
	assert.Equal(t, 1.25, got.Multiplier)
}

func TestResolveTraits(t *testing.T) {
	_, traits := testCatalog()
	item := testItem(t)

	tests := []struct {
		name     string
		selected []string
		want     []domain.ResolvedModifier
	}{
		{name: "none", selected: nil, want: nil},
		{name: "all unknown", selected: []string{"ghost", "phantom"}, want: []domain.ResolvedModifier{}},
		{
			name:     "preserves input order and drops unknown",
			selected: []string{"nyan", "ghost", "taco"},
			want: []domain.ResolvedModifier{
				{ID: "nyan", Name: "Nyan", Multiplier: 5},
				{ID: "taco", Name: "Taco", Multiplier: 2},
			},
		},
		{
			name:     "override applied per trait",
			selected: []string{"zombie", "taco"},
			want: []domain.ResolvedModifier{
				{ID: "zombie", Name: "Zombie", Multiplier: 3, ImageURL: "zombie.png", Overridden: true},
				{ID: "taco", Name: "Taco", Multiplier: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTraits(traits, item, tt.selected)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveTraits() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCalculateFinalValue(t *testing.T) {
	mut := func(m float64) *domain.ResolvedModifier { return &domain.ResolvedModifier{Multiplier: m} }
	traits := func(ms ...float64) []domain.ResolvedModifier {
		out := make([]domain.ResolvedModifier, 0, len(ms))
		for _, m := range ms {
			out = append(out, domain.ResolvedModifier{Multiplier: m})
		}
		return out
	}

	tests := []struct {
		name     string
		base     float64
		mutation *domain.ResolvedModifier
		traits   []domain.ResolvedModifier
		want     float64
	}{
		{name: "no modifiers keeps base exactly", base: 123.456789123, want: 123.456789123},
		{name: "zero base without modifiers", base: 0, want: 0},
		{name: "mutation only", base: 100, mutation: mut(2), want: 200},
		{name: "mutation below one reduces value", base: 100, mutation: mut(0.5), want: 50},
		{name: "traits only are additive", base: 100, traits: traits(2, 4), want: 600},
		{name: "mutation plus traits add", base: 100, mutation: mut(1.25), traits: traits(2, 3), want: 625},
		{name: "rounds to six places", base: 1, mutation: mut(1.0 / 3.0), want: 0.333333},
		{name: "rounds half away from zero", base: 1.0000005, traits: traits(1), want: 1.000001},
		{name: "float noise removed", base: 0.1, traits: traits(0.2, 0.1), want: 0.03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFinalValue(tt.base, tt.mutation, tt.traits)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateFinalValue_EndToEnd(t *testing.T) {
	mutations, traits := testCatalog()
	item := testItem(t)

	// rainbow overridden to 12, zombie overridden to 3, unknown trait dropped
	mutation := ResolveMutation(mutations, item, "rainbow")
	resolved := ResolveTraits(traits, item, []string{"zombie", "unknown", "taco"})

	assert.Equal(t, 1700.0, CalculateFinalValue(item.BaseValue, mutation, resolved))
}

func TestCalculateFinalValue_UnresolvableSelectionKeepsBase(t *testing.T) {
	mutations, traits := testCatalog()
	item := testItem(t)

	mutation := ResolveMutation(mutations, item, "removed")
	resolved := ResolveTraits(traits, item, []string{"removed-too"})

	assert.Equal(t, item.BaseValue, CalculateFinalValue(item.BaseValue, mutation, resolved))
}
