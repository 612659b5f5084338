// Package commission resolves ambassador commission rates from the
// tiered rate table.
package commission

import (
	"sort"

	"engage-rewards-service/internal/model"
)

// CurrentTier selects the tier that applies to a referral count.
// Rules:
//   - Only active tiers are considered, evaluated in ascending
//     min_referrals order; the last tier whose threshold is at or
//     below the count wins.
//   - A count below every threshold falls back to the lowest tier, so
//     a brand-new ambassador always resolves to a rate.
//   - A negative count is treated as 0.
//
// The second return value is false only when no active tier exists.
func CurrentTier(tiers []model.CommissionTier, referralCount int) (model.CommissionTier, bool) {
	if referralCount < 0 {
		referralCount = 0
	}

	active := make([]model.CommissionTier, 0, len(tiers))
	for _, t := range tiers {
		if t.IsActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return model.CommissionTier{}, false
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].MinReferrals < active[j].MinReferrals
	})

	// Lowest tier is the floor even when its threshold is not met.
	selected := active[0]
	for _, t := range active[1:] {
		if t.MinReferrals <= referralCount {
			selected = t
		}
	}
	return selected, true
}

// Resolve returns the effective commission percentage (0-100) for a
// referral count and optional country. Within the selected tier a
// country override wins over the global rate; country keys are matched
// exactly, so callers normalize codes before lookup. An empty tier set
// resolves to 0.
func Resolve(tiers []model.CommissionTier, referralCount int, country *string) float64 {
	tier, ok := CurrentTier(tiers, referralCount)
	if !ok {
		return 0
	}
	return RateFor(tier, country)
}

// RateFor returns a single tier's rate for an optional country.
func RateFor(tier model.CommissionTier, country *string) float64 {
	if country != nil {
		if override, ok := tier.CountryRates[*country]; ok {
			return override
		}
	}
	return tier.GlobalRate
}
