package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// Manager-only configuration operations. Authorization happens at the
// API layer; these assume the caller already holds the manager role.

// SetBoostRewardPoints updates the free boost base reward
func (s *BoostService) SetBoostRewardPoints(ctx context.Context, points int64) error {
	if points <= 0 {
		return &types.ServiceError{
			Code:    types.CodeInvalidRequest,
			Message: "boost reward points must be positive",
		}
	}
	return s.updateSettings(ctx, "boost_reward_points", func(settings *settingsPatch) {
		settings.target.BoostRewardPoints = points
	})
}

// SetPremiumBoostPrice updates the premium boost price in wei
func (s *BoostService) SetPremiumBoostPrice(ctx context.Context, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return &types.ServiceError{
			Code:    types.CodeInvalidRequest,
			Message: "premium boost price must be positive",
		}
	}
	return s.updateSettings(ctx, "premium_boost_price", func(settings *settingsPatch) {
		settings.target.PremiumBoostPrice = new(big.Int).Set(price)
	})
}

// SetFreeBoostCooldown updates the free boost cooldown. Existing
// streak anchors keep their alignment; only future window math uses
// the new value.
func (s *BoostService) SetFreeBoostCooldown(ctx context.Context, cooldown time.Duration) error {
	if cooldown <= 0 {
		return &types.ServiceError{
			Code:    types.CodeInvalidRequest,
			Message: "free boost cooldown must be positive",
		}
	}
	return s.updateSettings(ctx, "free_boost_cooldown", func(settings *settingsPatch) {
		settings.target.FreeBoostCooldown = cooldown
	})
}

// SetFrontendSigner updates the address whose signatures authorize
// free boosts.
func (s *BoostService) SetFrontendSigner(ctx context.Context, signer common.Address) error {
	if signer == (common.Address{}) {
		return &types.ServiceError{
			Code:    types.CodeInvalidRequest,
			Message: "frontend signer must not be the zero address",
		}
	}
	return s.updateSettings(ctx, "frontend_signer", func(settings *settingsPatch) {
		settings.target.FrontendSigner = signer
	})
}

// SetBadgeNFT updates the badge collection contract
func (s *BoostService) SetBadgeNFT(ctx context.Context, contract common.Address) error {
	if contract == (common.Address{}) {
		return &types.ServiceError{
			Code:    types.CodeInvalidRequest,
			Message: "badge contract must not be the zero address",
		}
	}
	err := s.updateSettings(ctx, "badge_nft", func(settings *settingsPatch) {
		settings.target.BadgeNFT = contract
	})
	if err != nil {
		return err
	}
	if s.onBadgeNFTChange != nil {
		s.onBadgeNFTChange(contract)
	}
	return nil
}

// Pause stops all mutating operations until Unpause
func (s *BoostService) Pause(ctx context.Context) error {
	return s.updateSettings(ctx, "paused", func(settings *settingsPatch) {
		settings.target.Paused = true
	})
}

// Unpause resumes mutating operations
func (s *BoostService) Unpause(ctx context.Context) error {
	return s.updateSettings(ctx, "paused", func(settings *settingsPatch) {
		settings.target.Paused = false
	})
}

type settingsPatch struct {
	target *models.EngineSettings
}

func (s *BoostService) updateSettings(ctx context.Context, field string, apply func(*settingsPatch)) error {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}
	apply(&settingsPatch{target: settings})
	settings.UpdatedAt = s.now()
	if err := s.settings.Update(ctx, settings); err != nil {
		return fmt.Errorf("failed to update engine settings: %w", err)
	}
	logging.FromContext(ctx).WithField("field", field).Info("Engine settings updated")
	return nil
}
