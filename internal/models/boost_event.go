package models

import (
	"time"

	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// BoostEvent is one row of the append-only boost history. Events feed
// the analytics store (totem leaderboards, activity history) and are
// never read back by the engine itself.
type BoostEvent struct {
	EventID      string          `json:"eventId"`
	User         common.Address  `json:"user"`
	Totem        common.Address  `json:"totem"`
	Kind         types.BoostKind `json:"kind"`
	StreakLength int             `json:"streakLength"`
	Reward       int64           `json:"reward"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// LeaderboardEntry is an aggregate over boost events for one user on a totem
type LeaderboardEntry struct {
	User        common.Address `json:"user"`
	TotalReward int64          `json:"totalReward"`
	BoostCount  int64          `json:"boostCount"`
}
