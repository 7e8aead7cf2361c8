package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/auth"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTotem = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestBoost_FirstBoost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.Reward)
	assert.Equal(t, 1, res.StreakLength)
	assert.False(t, res.StreakReset)
	assert.False(t, res.BoostPeriodActive)

	require.Len(t, h.merit.credits, 1)
	assert.Equal(t, creditCall{user: testUser, totem: testTotem, amount: 100}, h.merit.credits[0])

	rec, err := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.StreakLength)
	assert.Equal(t, h.now, rec.LastFreeBoostAt)
	assert.Equal(t, h.now, rec.StreakAnchorAt)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, types.BoostFree, h.events.events[0].Kind)
	assert.Equal(t, int64(100), h.events.events[0].Reward)
}

func TestBoost_ReplayRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	input := h.signedBoost(t, testUser, testTotem)
	_, err := h.svc.Boost(ctx, input)
	require.NoError(t, err)

	_, err = h.svc.Boost(ctx, input)
	requireCode(t, err, types.CodeSignatureAlreadyUsed)

	assert.Len(t, h.merit.credits, 1)
}

func TestBoost_CooldownEnforced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	h.advance(6 * time.Hour)
	second := h.signedBoost(t, testUser, testTotem)
	_, err = h.svc.Boost(ctx, second)
	requireCode(t, err, types.CodeNotEnoughTimePassed)

	// A rejected boost hands the signature back for a later retry
	assert.False(t, h.consumed.isConsumed(auth.SignatureDigest(second.Signature)))

	rec, err := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.StreakLength)
}

func TestBoost_NextWindowGrowsStreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	h.advance(24 * time.Hour)
	res, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	assert.Equal(t, 2, res.StreakLength)
	assert.Equal(t, int64(105), res.Reward)
}

func TestBoost_WrongSignerRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	input := h.signedBoostWith(t, otherKey, testUser, testTotem, h.now.Unix())
	_, err = h.svc.Boost(ctx, input)
	requireCode(t, err, types.CodeInvalidSignature)
	assert.Empty(t, h.merit.credits)
}

func TestBoost_Paused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Pause(ctx))
	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	requireCode(t, err, types.CodeSystemPaused)

	require.NoError(t, h.svc.Unpause(ctx))
	_, err = h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)
}

func TestBoost_InsufficientHolding(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.holdings.denied[recordKey(testUser, testTotem)] = true
	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	requireCode(t, err, types.CodeNotEnoughTokens)
}

func TestBoost_UnregisteredTotemRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.merit.creditErr = adapter.ErrTotemNotRegistered
	input := h.signedBoost(t, testUser, testTotem)
	_, err := h.svc.Boost(ctx, input)
	requireCode(t, err, types.CodeTotemNotRegistered)

	// Nothing persisted, signature re-armed
	rec, err := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, h.consumed.isConsumed(auth.SignatureDigest(input.Signature)))
}

func TestBoost_BoostPeriodMultiplier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.merit.boostPeriod = true
	h.merit.periodPct = 200

	res, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Reward)
	assert.True(t, res.BoostPeriodActive)

	// Second day: 105 scaled by 150% floors to 157
	h.merit.periodPct = 150
	h.advance(24 * time.Hour)
	res, err = h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)
	assert.Equal(t, int64(157), res.Reward)
}

func TestBoost_MilestoneBadgeAfterSevenDays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var last *BoostResult
	for day := 0; day < 7; day++ {
		if day > 0 {
			h.advance(24 * time.Hour)
		}
		res, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 7, last.StreakLength)
	assert.Equal(t, []types.Milestone{7}, last.MilestonesReached)

	count, err := h.svc.GetAvailableBadges(ctx, testUser, types.Milestone(7))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBoost_PerTotemIndependence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	otherTotem := common.HexToAddress("0x3333333333333333333333333333333333333333")

	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	// Same user, different totem: no shared cooldown, independent streak
	res, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, otherTotem))
	require.NoError(t, err)
	assert.Equal(t, 1, res.StreakLength)

	records, err := h.svc.GetBoostData(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestPremiumBoost_InsufficientPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	price := models.DefaultPremiumBoostPrice()
	_, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{
		User:    testUser,
		Totem:   testTotem,
		Payment: new(big.Int).Sub(price, big.NewInt(1)),
	})
	requireCode(t, err, types.CodeInsufficientPayment)
	assert.Empty(t, h.treasury.received)
}

func TestPremiumBoost_ExactPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	price := models.DefaultPremiumBoostPrice()
	res, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: price})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Zero(t, res.Refund.Sign())
	assert.Equal(t, 1, res.StreakLength)
	assert.True(t, res.GraceDayGranted)

	require.Len(t, h.treasury.received, 1)
	assert.Zero(t, h.treasury.received[0].Cmp(price))

	req, err := h.pending.Get(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, testUser, req.User)
	assert.Equal(t, 1, req.Snapshot.StreakLength)

	rec, err := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, err)
	assert.Equal(t, h.now, rec.LastPremiumBoostAt)
}

func TestPremiumBoost_RefundIsExact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	price := models.DefaultPremiumBoostPrice()
	overpay := new(big.Int).Add(price, big.NewInt(123456789))
	res, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: overpay})
	require.NoError(t, err)

	assert.Zero(t, res.Refund.Cmp(big.NewInt(123456789)))
	// The treasury keeps exactly the price, never the overpayment
	require.Len(t, h.treasury.received, 1)
	assert.Zero(t, h.treasury.received[0].Cmp(price))
}

func TestPremiumBoost_OneGraceDayPerWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	price := models.DefaultPremiumBoostPrice()

	res, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: price})
	require.NoError(t, err)
	assert.True(t, res.GraceDayGranted)

	h.advance(2 * time.Hour)
	res, err = h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: price})
	require.NoError(t, err)
	assert.False(t, res.GraceDayGranted)

	rec, err := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.GraceDaysEarned)

	// A full cooldown later the grant is available again
	h.advance(24 * time.Hour)
	res, err = h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: price})
	require.NoError(t, err)
	assert.True(t, res.GraceDayGranted)
}

func TestPremiumBoost_AdvancesStreakWithoutCooldownGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	price := models.DefaultPremiumBoostPrice()

	_, err := h.svc.Boost(ctx, h.signedBoost(t, testUser, testTotem))
	require.NoError(t, err)

	h.advance(24 * time.Hour)
	res, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{User: testUser, Totem: testTotem, Payment: price})
	require.NoError(t, err)
	assert.Equal(t, 2, res.StreakLength)

	// Premium snapshot carries the advanced streak
	req, err := h.pending.Get(ctx, res.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 2, req.Snapshot.StreakLength)
}

func TestPremiumBoost_OracleFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.oracle.requestErr = assert.AnError
	_, err := h.svc.PremiumBoost(ctx, &PremiumBoostInput{
		User:    testUser,
		Totem:   testTotem,
		Payment: models.DefaultPremiumBoostPrice(),
	})
	require.Error(t, err)

	rec, getErr := h.records.Get(ctx, testUser, testTotem)
	require.NoError(t, getErr)
	assert.Nil(t, rec)

	ids, listErr := h.pending.ListIDs(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, ids)
}

func TestMintBadge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.records.Mutate(ctx, testUser, testTotem, func(rec *models.BoostRecord) error {
		rec.UnmintedBadges[types.Milestone(7)] = 1
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, h.svc.MintBadge(ctx, testUser, types.Milestone(7)))
	assert.Equal(t, []types.Milestone{types.Milestone(7)}, h.minter.minted)

	err = h.svc.MintBadge(ctx, testUser, types.Milestone(7))
	requireCode(t, err, types.CodeMilestoneNotAchieved)
}
