package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/reward"
	"github.com/boost-engine/internal/types"
)

// PremiumResolver turns oracle randomness into premium boost rewards.
// It is shared by the oracle callback endpoint and the fulfillment
// worker, so resolution must be exactly-once however the word arrives.
type PremiumResolver struct {
	pending PendingStore
	merit   adapter.MeritManager
	events  EventLog
	calc    *reward.Calculator

	now func() time.Time
}

// NewPremiumResolver creates a resolver
func NewPremiumResolver(pending PendingStore, merit adapter.MeritManager, events EventLog) *PremiumResolver {
	return &PremiumResolver{
		pending: pending,
		merit:   merit,
		events:  events,
		calc:    reward.NewCalculator(),
		now:     time.Now,
	}
}

// SetClock overrides the resolver clock, for tests
func (r *PremiumResolver) SetClock(now func() time.Time) {
	r.now = now
}

// FulfillResult describes one resolved premium boost
type FulfillResult struct {
	RequestID         string             `json:"requestId"`
	Tier              reward.PremiumTier `json:"tier"`
	Reward            int64              `json:"reward"`
	StreakLength      int                `json:"streakLength"`
	BoostPeriodActive bool               `json:"boostPeriodActive"`
}

// Fulfill resolves one pending premium request with the oracle's
// random word. The pending row is deleted before the credit: the
// delete is the exactly-once claim, so a concurrent fulfillment of
// the same id sees REQUEST_NOT_FOUND. If the credit then fails the
// row is re-created so the worker retries on its next poll.
func (r *PremiumResolver) Fulfill(ctx context.Context, requestID string, randomWord uint64) (*FulfillResult, error) {
	req, err := r.pending.Get(ctx, requestID)
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

	tier := reward.RollTier(randomWord)
	amount := r.calc.PremiumReward(tier.BasePoints, req.Snapshot.StreakLength)

	periodActive, err := r.merit.IsBoostPeriod(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read boost period: %w", err)
	}
	if periodActive {
		pct, err := r.merit.BoostPeriodMultiplierPct(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read boost period multiplier: %w", err)
		}
		amount = r.calc.ApplyBoostPeriod(amount, pct)
	}

	claimed, err := r.pending.Delete(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending premium request: %w", err)
	}
	if !claimed {
		return nil, &types.ServiceError{
			Code:    types.CodeRequestNotFound,
			Message: "premium boost request was already fulfilled",
			Details: map[string]interface{}{"requestId": requestID},
		}
	}

	if err := r.merit.CreditMerit(ctx, req.User, req.Totem, amount); err != nil {
		if restoreErr := r.pending.Create(ctx, req); restoreErr != nil {
			logging.FromContext(ctx).WithError(restoreErr).
				WithField("request_id", requestID).
				Error("Failed to restore pending request after credit failure")
		}
		return nil, err
	}

	r.appendEvent(ctx, req, amount)

	return &FulfillResult{
		RequestID:         requestID,
		Tier:              tier,
		Reward:            amount,
		StreakLength:      req.Snapshot.StreakLength,
		BoostPeriodActive: periodActive,
	}, nil
}

func (r *PremiumResolver) appendEvent(ctx context.Context, req *models.PendingPremiumRequest, amount int64) {
	if r.events == nil {
		return
	}
	err := r.events.Append(ctx, &models.BoostEvent{
		User:         req.User,
		Totem:        req.Totem,
		Kind:         types.BoostPremium,
		StreakLength: req.Snapshot.StreakLength,
		Reward:       amount,
		OccurredAt:   r.now(),
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to append boost event")
	}
}
