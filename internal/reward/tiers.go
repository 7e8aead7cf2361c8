package reward

// PremiumTier is one outcome of the premium boost roll
type PremiumTier struct {
	// BasePoints is the tier reward before the streak multiplier.
	BasePoints int64 `json:"basePoints"`
	// ProbabilityPct is the tier's chance in whole percent.
	ProbabilityPct int64 `json:"probabilityPct"`
}

// PremiumTiers is the premium reward table, ordered by ascending payout.
// Probabilities sum to 100.
var PremiumTiers = []PremiumTier{
	{BasePoints: 500, ProbabilityPct: 50},
	{BasePoints: 700, ProbabilityPct: 25},
	{BasePoints: 1000, ProbabilityPct: 15},
	{BasePoints: 2000, ProbabilityPct: 7},
	{BasePoints: 3000, ProbabilityPct: 3},
}

// RollTier maps a random word onto a tier via the cumulative
// probability table. The word is reduced modulo 100 so any oracle word
// maps uniformly onto the table.
func RollTier(randomWord uint64) PremiumTier {
	roll := int64(randomWord % 100)
	var cumulative int64
	for _, tier := range PremiumTiers {
		cumulative += tier.ProbabilityPct
		if roll < cumulative {
			return tier
		}
	}
	// Unreachable while probabilities sum to 100; return the top tier
	// rather than panic if the table is ever misconfigured.
	return PremiumTiers[len(PremiumTiers)-1]
}
