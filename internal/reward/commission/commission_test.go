package commission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"engage-rewards-service/internal/model"
)

func tier(minReferrals int, rate float64, countryRates map[string]float64) model.CommissionTier {
	return model.CommissionTier{
		ID:           uuid.New(),
		MinReferrals: minReferrals,
		GlobalRate:   rate,
		CountryRates: countryRates,
		IsActive:     true,
	}
}

func strptr(s string) *string { return &s }

// TestResolve_TierSelection covers the standard two-tier setup: a base
// tier at 0 referrals and a higher tier at 10 with a country override.
func TestResolve_TierSelection(t *testing.T) {
	tiers := []model.CommissionTier{
		tier(0, 5, nil),
		tier(10, 8, map[string]float64{"NG": 12}),
	}

	tests := []struct {
		name      string
		referrals int
		country   *string
		expected  float64
	}{
		{"15 referrals in NG uses country override", 15, strptr("NG"), 12},
		{"15 referrals in US uses global rate", 15, strptr("US"), 8},
		{"3 referrals stays on base tier", 3, strptr("NG"), 5},
		{"3 referrals without country", 3, nil, 5},
		{"exactly at threshold qualifies", 10, nil, 8},
		{"one below threshold stays on base", 9, nil, 5},
		{"zero referrals resolves to base", 0, nil, 5},
		{"negative referrals treated as zero", -4, nil, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate := Resolve(tiers, tt.referrals, tt.country)
			assert.Equal(t, tt.expected, rate)
		})
	}
}

// TestCurrentTier_Floor checks that a referral count below every
// threshold still resolves to the lowest tier.
func TestCurrentTier_Floor(t *testing.T) {
	tiers := []model.CommissionTier{
		tier(5, 6, nil),
		tier(20, 10, nil),
	}

	selected, ok := CurrentTier(tiers, 2)
	require.True(t, ok)
	assert.Equal(t, 5, selected.MinReferrals)
	assert.Equal(t, float64(6), selected.GlobalRate)
}

func TestCurrentTier_SkipsInactive(t *testing.T) {
	inactive := tier(10, 50, nil)
	inactive.IsActive = false

	tiers := []model.CommissionTier{
		tier(0, 5, nil),
		inactive,
		tier(20, 10, nil),
	}

	selected, ok := CurrentTier(tiers, 15)
	require.True(t, ok)
	assert.Equal(t, 0, selected.MinReferrals, "inactive tier must not win")

	selected, ok = CurrentTier(tiers, 25)
	require.True(t, ok)
	assert.Equal(t, 20, selected.MinReferrals)
}

func TestCurrentTier_UnsortedInput(t *testing.T) {
	tiers := []model.CommissionTier{
		tier(20, 10, nil),
		tier(0, 5, nil),
		tier(10, 8, nil),
	}

	selected, ok := CurrentTier(tiers, 12)
	require.True(t, ok)
	assert.Equal(t, 10, selected.MinReferrals)
}

func TestCurrentTier_EmptySet(t *testing.T) {
	_, ok := CurrentTier(nil, 10)
	assert.False(t, ok)

	inactive := tier(0, 5, nil)
	inactive.IsActive = false
	_, ok = CurrentTier([]model.CommissionTier{inactive}, 10)
	assert.False(t, ok)

	assert.Equal(t, float64(0), Resolve(nil, 10, nil))
}

func TestRateFor_CountryMatching(t *testing.T) {
	tr := tier(0, 8, map[string]float64{"NG": 12, "KE": 9})

	tests := []struct {
		name     string
		country  *string
		expected float64
	}{
		{"override country", strptr("NG"), 12},
		{"second override country", strptr("KE"), 9},
		{"unlisted country falls back to global", strptr("US"), 8},
		{"nil country uses global", nil, 8},
		{"casing is matched exactly", strptr("ng"), 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RateFor(tr, tt.country))
		})
	}
}

// genTierSet draws 1-8 active tiers with distinct thresholds, matching
// the table's data invariant of unique ascending min_referrals.
func genTierSet(t *rapid.T) []model.CommissionTier {
	numTiers := rapid.IntRange(1, 8).Draw(t, "numTiers")
	seen := make(map[int]bool)
	tiers := make([]model.CommissionTier, 0, numTiers)
	for len(tiers) < numTiers {
		min := rapid.IntRange(0, 100).Draw(t, "minReferrals")
		if seen[min] {
			continue
		}
		seen[min] = true
		tiers = append(tiers, tier(min, float64(rapid.IntRange(0, 100).Draw(t, "rate")), nil))
	}
	return tiers
}

// TestResolveProperty verifies that for any active tier set and any
// referral count, Resolve returns the rate of the highest-threshold
// tier at or below the count, or the lowest tier as floor, checked
// against a naive reference walk.
func TestResolveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tiers := genTierSet(t)
		referrals := rapid.IntRange(-5, 150).Draw(t, "referrals")

		count := referrals
		if count < 0 {
			count = 0
		}

		// Reference walk over the unsorted input.
		var want model.CommissionTier
		qualified := false
		for _, tr := range tiers {
			if tr.MinReferrals <= count && (!qualified || tr.MinReferrals > want.MinReferrals) {
				want = tr
				qualified = true
			}
		}
		if !qualified {
			want = tiers[0]
			for _, tr := range tiers[1:] {
				if tr.MinReferrals < want.MinReferrals {
					want = tr
				}
			}
		}

		got := Resolve(tiers, referrals, nil)
		assert.Equal(t, want.GlobalRate, got, "referrals=%d", referrals)
	})
}

// TestResolveInactiveTiersIrrelevantProperty verifies that adding
// inactive tiers never changes the resolved rate.
func TestResolveInactiveTiersIrrelevantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tiers := genTierSet(t)
		referrals := rapid.IntRange(0, 100).Draw(t, "referrals")

		base := Resolve(tiers, referrals, nil)

		numInactive := rapid.IntRange(1, 3).Draw(t, "numInactive")
		withInactive := append([]model.CommissionTier{}, tiers...)
		for i := 0; i < numInactive; i++ {
			dead := tier(
				rapid.IntRange(0, 50).Draw(t, "deadMin"),
				float64(rapid.IntRange(0, 100).Draw(t, "deadRate")),
				nil,
			)
			dead.IsActive = false
			withInactive = append(withInactive, dead)
		}

		assert.Equal(t, base, Resolve(withInactive, referrals, nil))
	})
}

// TestResolveDoesNotMutateInputProperty verifies Resolve leaves the
// caller's tier slice order untouched.
func TestResolveDoesNotMutateInputProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tiers := genTierSet(t)

		order := make([]int, len(tiers))
		for i, tr := range tiers {
			order[i] = tr.MinReferrals
		}

		Resolve(tiers, rapid.IntRange(0, 200).Draw(t, "referrals"), nil)

		for i, tr := range tiers {
			require.Equal(t, order[i], tr.MinReferrals, "input slice reordered")
		}
	})
}
