package models

import (
	"time"

	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// BoostRecord tracks the streak, grace-day, and badge state for one
// (user, totem) pair. Records are created lazily on first boost and
// never deleted.
type BoostRecord struct {
	User  common.Address `json:"user"`
	Totem common.Address `json:"totem"`

	LastFreeBoostAt    time.Time `json:"lastFreeBoostAt"`
	LastPremiumBoostAt time.Time `json:"lastPremiumBoostAt"`

	// StreakAnchorAt is the timestamp the current streak window is
	// measured from. It advances in whole cooldown increments so
	// windows stay aligned.
	StreakAnchorAt time.Time `json:"streakAnchorAt"`
	StreakLength   int       `json:"streakLength"`

	GraceDaysEarned int `json:"graceDaysEarned"`
	GraceDaysUsed   int `json:"graceDaysUsed"`

	// UnmintedBadges maps milestone -> available badge mint count.
	UnmintedBadges map[types.Milestone]int `json:"unmintedBadges"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBoostRecord creates an empty record for a (user, totem) pair
func NewBoostRecord(user, totem common.Address) *BoostRecord {
	return &BoostRecord{
		User:           user,
		Totem:          totem,
		UnmintedBadges: make(map[types.Milestone]int),
	}
}

// GraceDaysAvailable returns the number of banked grace days not yet spent
func (r *BoostRecord) GraceDaysAvailable() int {
	return r.GraceDaysEarned - r.GraceDaysUsed
}

// StreakSnapshot is the immutable streak state captured when a premium
// boost issues its randomness request. The fulfillment reward is computed
// from this snapshot, not from the record state at fulfillment time.
type StreakSnapshot struct {
	StreakLength int       `json:"streakLength"`
	TakenAt      time.Time `json:"takenAt"`
}

// Snapshot captures the record's current streak state
func (r *BoostRecord) Snapshot(now time.Time) StreakSnapshot {
	return StreakSnapshot{
		StreakLength: r.StreakLength,
		TakenAt:      now,
	}
}
