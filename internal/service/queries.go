package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/reward"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// StreakInfo is the read-model for a user's streak on one totem
type StreakInfo struct {
	User               common.Address `json:"user"`
	Totem              common.Address `json:"totem"`
	StreakLength       int            `json:"streakLength"`
	StreakAnchorAt     time.Time      `json:"streakAnchorAt"`
	NextWindowOpensAt  time.Time      `json:"nextWindowOpensAt"`
	GraceDaysEarned    int            `json:"graceDaysEarned"`
	GraceDaysUsed      int            `json:"graceDaysUsed"`
	GraceDaysAvailable int            `json:"graceDaysAvailable"`
}

// streakInfoKey builds the cache key for one pair's streak read-model
func streakInfoKey(user, totem common.Address) string {
	return "streak:" + strings.ToLower(user.Hex()) + ":" + strings.ToLower(totem.Hex())
}

// GetStreakInfo returns the streak read-model for one (user, totem)
// pair. A pair that never boosted yields a zero-valued info. Served
// from the query cache when one is configured; cache failures fall
// through to the store.
func (s *BoostService) GetStreakInfo(ctx context.Context, user, totem common.Address) (*StreakInfo, error) {
	if s.cache != nil {
		var cached StreakInfo
		hit, err := s.cache.Get(ctx, streakInfoKey(user, totem), &cached)
		if err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to read streak cache")
		} else if hit {
			return &cached, nil
		}
	}

	info := &StreakInfo{User: user, Totem: totem}

	rec, err := s.records.Get(ctx, user, totem)
	if err != nil {
		return nil, fmt.Errorf("failed to load boost record: %w", err)
	}
	if rec == nil {
		return info, nil
	}

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}

	info.StreakLength = rec.StreakLength
	info.StreakAnchorAt = rec.StreakAnchorAt
	info.GraceDaysEarned = rec.GraceDaysEarned
	info.GraceDaysUsed = rec.GraceDaysUsed
	info.GraceDaysAvailable = rec.GraceDaysAvailable()
	if !rec.StreakAnchorAt.IsZero() {
		info.NextWindowOpensAt = rec.StreakAnchorAt.Add(settings.FreeBoostCooldown)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, streakInfoKey(user, totem), info); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to write streak cache")
		}
	}
	return info, nil
}

// GetBoostData returns all boost records for a user, one per totem
func (s *BoostService) GetBoostData(ctx context.Context, user common.Address) ([]*models.BoostRecord, error) {
	records, err := s.records.ListByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list boost records: %w", err)
	}
	return records, nil
}

// GetAvailableBadges returns how many unminted badges the user holds
// for a milestone, summed across totems.
func (s *BoostService) GetAvailableBadges(ctx context.Context, user common.Address, milestone types.Milestone) (int, error) {
	return s.ledger.Available(ctx, user, milestone)
}

// PremiumBoostConfig is the read-model for premium boost pricing
type PremiumBoostConfig struct {
	Price *big.Int             `json:"price"`
	Tiers []reward.PremiumTier `json:"tiers"`
}

// GetPremiumBoostConfig returns the current premium price and the
// reward tier table.
func (s *BoostService) GetPremiumBoostConfig(ctx context.Context) (*PremiumBoostConfig, error) {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &PremiumBoostConfig{
		Price: settings.PremiumBoostPrice,
		Tiers: reward.PremiumTiers,
	}, nil
}

// GetFreeBoostCooldown returns the current free boost cooldown
func (s *BoostService) GetFreeBoostCooldown(ctx context.Context) (time.Duration, error) {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.FreeBoostCooldown, nil
}

// GetPendingPremium looks up an in-flight premium request by id.
// Returns REQUEST_NOT_FOUND when the request is unknown or already
// fulfilled.
func (s *BoostService) GetPendingPremium(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error) {
	req, err := s.pending.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending premium request: %w", err)
	}
	if req == nil {
		return nil, &types.ServiceError{
			Code:    types.CodeRequestNotFound,
			Message: "no pending premium boost with that request id",
			Details: map[string]interface{}{"requestId": requestID},
		}
	}
	return req, nil
}

// Leaderboard returns totem boosters ranked by cumulative reward
func (s *BoostService) Leaderboard(ctx context.Context, totem common.Address, limit int) ([]*models.LeaderboardEntry, error) {
	if s.events == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.events.Leaderboard(ctx, totem, limit)
}
