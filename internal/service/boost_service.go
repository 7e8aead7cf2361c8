// Package service implements the boost engine orchestration: the free
// and premium boost entry points, badge minting, queries, and the
// manager-gated admin operations.
package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/auth"
	"github.com/boost-engine/internal/badge"
	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/reward"
	"github.com/boost-engine/internal/streak"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// Storage interfaces for dependency injection and testing

// RecordStore persists boost records. Mutate must serialize mutations
// per (user, totem) pair and discard them when fn fails.
type RecordStore interface {
	Get(ctx context.Context, user, totem common.Address) (*models.BoostRecord, error)
	ListByUser(ctx context.Context, user common.Address) ([]*models.BoostRecord, error)
	Mutate(ctx context.Context, user, totem common.Address, fn func(*models.BoostRecord) error) error
}

// PendingStore persists in-flight premium randomness requests
type PendingStore interface {
	Create(ctx context.Context, req *models.PendingPremiumRequest) error
	Get(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error)
	Delete(ctx context.Context, requestID string) (bool, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PendingPremiumRequest, error)
}

// SettingsStore persists manager-tunable engine settings
type SettingsStore interface {
	Get(ctx context.Context) (*models.EngineSettings, error)
	Update(ctx context.Context, settings *models.EngineSettings) error
}

// EventLog records boost history for analytics
type EventLog interface {
	Append(ctx context.Context, event *models.BoostEvent) error
	Leaderboard(ctx context.Context, totem common.Address, limit int) ([]*models.LeaderboardEntry, error)
}

// QueryCache caches serialized read models. Optional; the service
// works without one.
type QueryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Config holds the static service parameters the manager cannot change
// at runtime.
type Config struct {
	// DefaultSigner is the frontend signer used until the manager sets
	// one explicitly.
	DefaultSigner common.Address

	// GraceDayInterval grants a grace day each time the streak reaches
	// a multiple of this value.
	GraceDayInterval int
}

// BoostService is the engine orchestrator
type BoostService struct {
	cfg      Config
	records  RecordStore
	pending  PendingStore
	settings SettingsStore
	events   EventLog

	verifier *auth.Verifier
	calc     *reward.Calculator
	ledger   *badge.Ledger

	merit    adapter.MeritManager
	treasury adapter.Treasury
	holdings adapter.HoldingChecker
	oracle   adapter.RandomnessOracle

	// onBadgeNFTChange lets the wiring repoint the badge minter when
	// the manager swaps the collection contract.
	onBadgeNFTChange func(common.Address)

	cache QueryCache

	now func() time.Time
}

// NewBoostService creates the orchestrator
func NewBoostService(
	cfg Config,
	records RecordStore,
	pending PendingStore,
	settings SettingsStore,
	events EventLog,
	verifier *auth.Verifier,
	minter badge.Minter,
	merit adapter.MeritManager,
	treasury adapter.Treasury,
	holdings adapter.HoldingChecker,
	oracle adapter.RandomnessOracle,
) *BoostService {
	return &BoostService{
		cfg:      cfg,
		records:  records,
		pending:  pending,
		settings: settings,
		events:   events,
		verifier: verifier,
		calc:     reward.NewCalculator(),
		ledger:   badge.NewLedger(records, minter),
		merit:    merit,
		treasury: treasury,
		holdings: holdings,
		oracle:   oracle,
		now:      time.Now,
	}
}

// SetClock overrides the service clock, for tests
func (s *BoostService) SetClock(now func() time.Time) {
	s.now = now
}

// SetBadgeNFTChangeHook registers a callback invoked when the manager
// repoints the badge collection contract.
func (s *BoostService) SetBadgeNFTChangeHook(fn func(common.Address)) {
	s.onBadgeNFTChange = fn
}

// SetQueryCache enables read-model caching for streak queries
func (s *BoostService) SetQueryCache(cache QueryCache) {
	s.cache = cache
}

// BoostInput represents a signed free boost request
type BoostInput struct {
	User      common.Address `json:"user"`
	Totem     common.Address `json:"totem"`
	Timestamp int64          `json:"timestamp"`
	Signature []byte         `json:"signature"`
}

// BoostResult represents the outcome of a free boost
type BoostResult struct {
	Reward            int64             `json:"reward"`
	StreakLength      int               `json:"streakLength"`
	GraceDaysConsumed int               `json:"graceDaysConsumed"`
	StreakReset       bool              `json:"streakReset"`
	MilestonesReached []types.Milestone `json:"milestonesReached,omitempty"`
	BoostPeriodActive bool              `json:"boostPeriodActive"`
}

// Boost performs a free boost: authenticates the signed request,
// enforces the cooldown, advances the streak, and credits the reward
// to the merit ledger. All checks and the credit run inside the record
// mutation, so a failure at any point leaves no partial state.
func (s *BoostService) Boost(ctx context.Context, input *BoostInput) (*BoostResult, error) {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireActive(settings); err != nil {
		return nil, err
	}
	if err := s.requireHolding(ctx, input.User, input.Totem); err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, settings.FrontendSigner, input.User, input.Totem, input.Timestamp, input.Signature); err != nil {
		return nil, err
	}

	now := s.now()
	tracker := s.tracker(settings)
	var result BoostResult

	err = s.records.Mutate(ctx, input.User, input.Totem, func(rec *models.BoostRecord) error {
		if !rec.LastFreeBoostAt.IsZero() && now.Sub(rec.LastFreeBoostAt) < settings.FreeBoostCooldown {
			return &types.ServiceError{
				Code:    types.CodeNotEnoughTimePassed,
				Message: "free boost cooldown has not elapsed",
				Details: map[string]interface{}{
					"cooldown":  settings.FreeBoostCooldown.String(),
					"lastBoost": rec.LastFreeBoostAt,
				},
			}
		}

		advance := tracker.Advance(rec, now, false)

		amount := s.calc.FreeReward(settings.BoostRewardPoints, advance.StreakLength)
		amount, periodActive, err := s.applyBoostPeriod(ctx, amount)
		if err != nil {
			return err
		}

		if err := s.merit.CreditMerit(ctx, input.User, input.Totem, amount); err != nil {
			return err
		}

		rec.LastFreeBoostAt = now

		result = BoostResult{
			Reward:            amount,
			StreakLength:      advance.StreakLength,
			GraceDaysConsumed: advance.GraceDaysConsumed,
			StreakReset:       advance.Reset,
			MilestonesReached: advance.MilestonesReached,
			BoostPeriodActive: periodActive,
		}
		return nil
	})
	if err != nil {
		// The signature was consumed before the mutation; hand it back
		// so the user can retry with the same signed request.
		if releaseErr := s.verifier.Release(ctx, input.Signature); releaseErr != nil {
			logging.FromContext(ctx).WithError(releaseErr).Warn("Failed to release consumed signature")
		}
		return nil, err
	}

	s.invalidateStreakInfo(ctx, input.User, input.Totem)
	s.appendEvent(ctx, &models.BoostEvent{
		User:         input.User,
		Totem:        input.Totem,
		Kind:         types.BoostFree,
		StreakLength: result.StreakLength,
		Reward:       result.Reward,
		OccurredAt:   now,
	})

	return &result, nil
}

// PremiumBoostInput represents a paid premium boost request
type PremiumBoostInput struct {
	User    common.Address `json:"user"`
	Totem   common.Address `json:"totem"`
	Payment *big.Int       `json:"payment"`
}

// PremiumBoostResult represents the synchronous outcome of a premium
// boost. The reward itself arrives later through oracle fulfillment.
type PremiumBoostResult struct {
	RequestID       string   `json:"requestId"`
	Refund          *big.Int `json:"refund"`
	StreakLength    int      `json:"streakLength"`
	GraceDayGranted bool     `json:"graceDayGranted"`
}

// PremiumBoost performs a paid boost: takes payment, advances the
// streak immediately, forwards the price to the treasury, and issues
// an asynchronous randomness request. No reward is credited here.
func (s *BoostService) PremiumBoost(ctx context.Context, input *PremiumBoostInput) (*PremiumBoostResult, error) {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireActive(settings); err != nil {
		return nil, err
	}
	if err := s.requireHolding(ctx, input.User, input.Totem); err != nil {
		return nil, err
	}

	price := settings.PremiumBoostPrice
	if input.Payment == nil || input.Payment.Cmp(price) < 0 {
		return nil, &types.ServiceError{
			Code:    types.CodeInsufficientPayment,
			Message: "payment is below the premium boost price",
			Details: map[string]interface{}{
				"price": price.String(),
			},
		}
	}
	refund := new(big.Int).Sub(input.Payment, price)

	now := s.now()
	tracker := s.tracker(settings)
	var result PremiumBoostResult

	err = s.records.Mutate(ctx, input.User, input.Totem, func(rec *models.BoostRecord) error {
		advance := tracker.Advance(rec, now, true)

		if err := s.treasury.Receive(ctx, price); err != nil {
			return err
		}

		requestID, err := s.oracle.Request(ctx)
		if err != nil {
			return err
		}

		// The fulfillment reward is computed from the streak state as
		// it stands now, not as it stands when the oracle answers.
		if err := s.pending.Create(ctx, &models.PendingPremiumRequest{
			RequestID: requestID,
			User:      input.User,
			Totem:     input.Totem,
			Snapshot:  rec.Snapshot(now),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		rec.LastPremiumBoostAt = now

		result = PremiumBoostResult{
			RequestID:       requestID,
			Refund:          refund,
			StreakLength:    advance.StreakLength,
			GraceDayGranted: advance.GraceDayGranted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStreakInfo(ctx, input.User, input.Totem)
	return &result, nil
}

// MintBadge mints one badge for a reached milestone
func (s *BoostService) MintBadge(ctx context.Context, user common.Address, milestone types.Milestone) error {
	settings, err := s.currentSettings(ctx)
	if err != nil {
		return err
	}
	if err := s.requireActive(settings); err != nil {
		return err
	}
	return s.ledger.Mint(ctx, user, milestone)
}

// requireActive rejects mutating calls while the engine is paused
func (s *BoostService) requireActive(settings *models.EngineSettings) error {
	if settings.Paused {
		return &types.ServiceError{
			Code:    types.CodeSystemPaused,
			Message: "the boost engine is paused",
		}
	}
	return nil
}

// requireHolding rejects users below the totem holding threshold
func (s *BoostService) requireHolding(ctx context.Context, user, totem common.Address) error {
	ok, err := s.holdings.HasMinimumHolding(ctx, user, totem)
	if err != nil {
		return fmt.Errorf("failed to check totem holding: %w", err)
	}
	if !ok {
		return &types.ServiceError{
			Code:    types.CodeNotEnoughTokens,
			Message: "caller does not hold enough of the totem's token",
		}
	}
	return nil
}

// applyBoostPeriod scales a reward by the active boost period, if any
func (s *BoostService) applyBoostPeriod(ctx context.Context, amount int64) (int64, bool, error) {
	active, err := s.merit.IsBoostPeriod(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read boost period: %w", err)
	}
	if !active {
		return amount, false, nil
	}
	pct, err := s.merit.BoostPeriodMultiplierPct(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read boost period multiplier: %w", err)
	}
	return s.calc.ApplyBoostPeriod(amount, pct), true, nil
}

// tracker builds a streak tracker for the current cooldown setting
func (s *BoostService) tracker(settings *models.EngineSettings) *streak.Tracker {
	return streak.NewTracker(streak.Config{
		Cooldown:         settings.FreeBoostCooldown,
		GraceDayInterval: s.cfg.GraceDayInterval,
	})
}

// currentSettings loads settings and applies static fallbacks
func (s *BoostService) currentSettings(ctx context.Context) (*models.EngineSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine settings: %w", err)
	}
	if settings.FrontendSigner == (common.Address{}) {
		settings.FrontendSigner = s.cfg.DefaultSigner
	}
	if settings.FreeBoostCooldown <= 0 {
		settings.FreeBoostCooldown = models.DefaultFreeBoostCooldown
	}
	if settings.BoostRewardPoints <= 0 {
		settings.BoostRewardPoints = models.DefaultBoostRewardPoints
	}
	if settings.PremiumBoostPrice == nil {
		settings.PremiumBoostPrice = models.DefaultPremiumBoostPrice()
	}
	return settings, nil
}

// invalidateStreakInfo drops the cached read model after a mutation
func (s *BoostService) invalidateStreakInfo(ctx context.Context, user, totem common.Address) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, streakInfoKey(user, totem)); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate streak cache")
	}
}

// appendEvent records a boost event, best effort
func (s *BoostService) appendEvent(ctx context.Context, event *models.BoostEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, event); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to append boost event")
	}
}
