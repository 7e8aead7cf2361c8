// Package streak implements the per-(user,totem) streak and grace-day
// state machine. The tracker is pure: it mutates the record it is given
// and performs no I/O, which keeps the window arithmetic testable in
// isolation.
package streak

import (
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
)

// Default streak parameters
const (
	// DefaultGraceDayInterval is the streak length between automatic
	// grace-day grants.
	DefaultGraceDayInterval = 30
)

// Config holds streak tracker parameters
type Config struct {
	// Cooldown is the window length. A boost within [cooldown, 2*cooldown)
	// of the anchor advances the streak by one.
	Cooldown time.Duration

	// GraceDayInterval grants one grace day each time the streak length
	// reaches a multiple of this value.
	GraceDayInterval int
}

// DefaultConfig returns the standard 24h-window configuration
func DefaultConfig() Config {
	return Config{
		Cooldown:         models.DefaultFreeBoostCooldown,
		GraceDayInterval: DefaultGraceDayInterval,
	}
}

// Result describes what a single Advance call did to the record
type Result struct {
	StreakLength      int               `json:"streakLength"`
	GraceDayGranted   bool              `json:"graceDayGranted"`
	GraceDaysConsumed int               `json:"graceDaysConsumed"`
	Reset             bool              `json:"reset"`
	MilestonesReached []types.Milestone `json:"milestonesReached,omitempty"`
}

// Tracker advances boost records through the streak state machine
type Tracker struct {
	cfg Config
}

// NewTracker creates a tracker with the given configuration
func NewTracker(cfg Config) *Tracker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = models.DefaultFreeBoostCooldown
	}
	if cfg.GraceDayInterval <= 0 {
		cfg.GraceDayInterval = DefaultGraceDayInterval
	}
	return &Tracker{cfg: cfg}
}

// Cooldown returns the configured window length
func (t *Tracker) Cooldown() time.Duration {
	return t.cfg.Cooldown
}

// Advance applies one boost at time now to the record and returns what
// changed. The caller is responsible for updating LastFreeBoostAt or
// LastPremiumBoostAt afterwards; Advance only reads them.
//
// Window arithmetic: the anchor advances in whole cooldown increments,
// never to now, so windows stay aligned to the first boost.
func (t *Tracker) Advance(rec *models.BoostRecord, now time.Time, premium bool) Result {
	var res Result

	switch {
	case rec.StreakAnchorAt.IsZero():
		// First interaction for this (user, totem) pair.
		rec.StreakAnchorAt = now
		rec.StreakLength = 1

	default:
		elapsed := now.Sub(rec.StreakAnchorAt)
		switch {
		case elapsed < t.cfg.Cooldown:
			// Same window: streak unchanged.

		case elapsed < 2*t.cfg.Cooldown:
			t.increment(rec, &res)
			rec.StreakAnchorAt = rec.StreakAnchorAt.Add(t.cfg.Cooldown)

		default:
			missed := int(elapsed/t.cfg.Cooldown) - 1
			if missed <= rec.GraceDaysAvailable() {
				rec.GraceDaysUsed += missed
				res.GraceDaysConsumed = missed
				t.increment(rec, &res)
				rec.StreakAnchorAt = rec.StreakAnchorAt.Add(time.Duration(missed+1) * t.cfg.Cooldown)
			} else {
				// Not enough grace days banked: the streak breaks.
				// Previously minted badge NFTs are unaffected; only the
				// unminted counters clear.
				rec.StreakLength = 1
				rec.StreakAnchorAt = now
				rec.GraceDaysEarned = 0
				rec.GraceDaysUsed = 0
				rec.UnmintedBadges = make(map[types.Milestone]int)
				res.Reset = true
			}
		}
	}

	// A premium boost banks one grace day, at most once per cooldown
	// window of premium activity.
	if premium && (rec.LastPremiumBoostAt.IsZero() || now.Sub(rec.LastPremiumBoostAt) >= t.cfg.Cooldown) {
		rec.GraceDaysEarned++
		res.GraceDayGranted = true
	}

	res.StreakLength = rec.StreakLength
	return res
}

// increment bumps the streak length by one and applies length-triggered
// grants: a grace day at every GraceDayInterval multiple and an unminted
// badge at every milestone.
func (t *Tracker) increment(rec *models.BoostRecord, res *Result) {
	rec.StreakLength++

	if rec.StreakLength%t.cfg.GraceDayInterval == 0 {
		rec.GraceDaysEarned++
	}

	if types.IsMilestone(rec.StreakLength) {
		m := types.Milestone(rec.StreakLength)
		if rec.UnmintedBadges == nil {
			rec.UnmintedBadges = make(map[types.Milestone]int)
		}
		rec.UnmintedBadges[m]++
		res.MilestonesReached = append(res.MilestonesReached, m)
	}
}
