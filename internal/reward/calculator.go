// Package reward converts streak lengths into merit point amounts.
package reward

// Multiplier parameters, in whole percent
const (
	// BaseMultiplierPct is the multiplier for a streak of length 1.
	BaseMultiplierPct = 100
	// MultiplierStepPct is the extra multiplier per streak day beyond the first.
	MultiplierStepPct = 5
	// MaxMultiplierPct caps the streak multiplier (reached at day 30).
	MaxMultiplierPct = 245
)

// MultiplierPct returns the reward multiplier for a streak length, in
// whole percent. Streak lengths below 1 are treated as 1.
func MultiplierPct(streakLength int) int64 {
	if streakLength < 1 {
		streakLength = 1
	}
	pct := int64(BaseMultiplierPct + MultiplierStepPct*(streakLength-1))
	if pct > MaxMultiplierPct {
		pct = MaxMultiplierPct
	}
	return pct
}

// Calculator computes boost rewards from streak state and the optional
// boost-period (Mythum) multiplier reported by the merit ledger.
type Calculator struct{}

// NewCalculator creates a reward calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// FreeReward returns the merit credited for a free boost: the base
// points scaled by the streak multiplier, floor division throughout.
func (c *Calculator) FreeReward(basePoints int64, streakLength int) int64 {
	return basePoints * MultiplierPct(streakLength) / 100
}

// PremiumReward returns the merit credited for a resolved premium
// boost: the rolled tier base scaled by the streak multiplier.
func (c *Calculator) PremiumReward(tierBase int64, streakLength int) int64 {
	return tierBase * MultiplierPct(streakLength) / 100
}

// ApplyBoostPeriod scales a reward by the boost-period multiplier, in
// whole percent. A multiplier of 100 is the identity.
func (c *Calculator) ApplyBoostPeriod(amount int64, periodPct int64) int64 {
	if periodPct <= 0 {
		return amount
	}
	return amount * periodPct / 100
}
