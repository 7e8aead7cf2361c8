package service

import (
	"context"
	"testing"
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolverHarness(t *testing.T) (*PremiumResolver, *memPendingStore, *fakeMeritManager, *memEventLog) {
	t.Helper()
	pending := newMemPendingStore()
	merit := &fakeMeritManager{}
	events := &memEventLog{}
	resolver := NewPremiumResolver(pending, merit, events)
	resolver.SetClock(func() time.Time {
		return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	})
	return resolver, pending, merit, events
}

func seedPending(t *testing.T, pending *memPendingStore, requestID string, streakLength int) {
	t.Helper()
	err := pending.Create(context.Background(), &models.PendingPremiumRequest{
		RequestID: requestID,
		User:      testUser,
		Totem:     testTotem,
		Snapshot:  models.StreakSnapshot{StreakLength: streakLength},
		CreatedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestFulfill_CreditsSnapshotReward(t *testing.T) {
	resolver, pending, merit, events := newResolverHarness(t)
	ctx := context.Background()
	seedPending(t, pending, "req-1", 3)

	// Word 0 rolls the 500-point tier; streak 3 multiplies by 110%
	res, err := resolver.Fulfill(ctx, "req-1", 0)
	require.NoError(t, err)

	assert.Equal(t, int64(500), res.Tier.BasePoints)
	assert.Equal(t, int64(550), res.Reward)
	assert.Equal(t, 3, res.StreakLength)

	require.Len(t, merit.credits, 1)
	assert.Equal(t, creditCall{user: testUser, totem: testTotem, amount: 550}, merit.credits[0])

	req, err := pending.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, req)

	require.Len(t, events.events, 1)
	assert.Equal(t, types.BoostPremium, events.events[0].Kind)
}

func TestFulfill_TopTier(t *testing.T) {
	resolver, pending, _, _ := newResolverHarness(t)
	seedPending(t, pending, "req-1", 1)

	// Word 97 lands in the 3% top tier
	res, err := resolver.Fulfill(context.Background(), "req-1", 97)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), res.Tier.BasePoints)
	assert.Equal(t, int64(3000), res.Reward)
}

func TestFulfill_UnknownRequest(t *testing.T) {
	resolver, _, merit, _ := newResolverHarness(t)

	_, err := resolver.Fulfill(context.Background(), "req-missing", 42)
	requireCode(t, err, types.CodeRequestNotFound)
	assert.Empty(t, merit.credits)
}

func TestFulfill_ExactlyOnce(t *testing.T) {
	resolver, pending, merit, _ := newResolverHarness(t)
	ctx := context.Background()
	seedPending(t, pending, "req-1", 1)

	_, err := resolver.Fulfill(ctx, "req-1", 10)
	require.NoError(t, err)

	_, err = resolver.Fulfill(ctx, "req-1", 10)
	requireCode(t, err, types.CodeRequestNotFound)
	assert.Len(t, merit.credits, 1)
}

func TestFulfill_CreditFailureRestoresPending(t *testing.T) {
	resolver, pending, merit, _ := newResolverHarness(t)
	ctx := context.Background()
	seedPending(t, pending, "req-1", 2)

	merit.creditErr = assert.AnError
	_, err := resolver.Fulfill(ctx, "req-1", 0)
	require.Error(t, err)

	// The request stays claimable so the worker retries later
	req, getErr := pending.Get(ctx, "req-1")
	require.NoError(t, getErr)
	require.NotNil(t, req)
	assert.Equal(t, 2, req.Snapshot.StreakLength)

	merit.creditErr = nil
	res, err := resolver.Fulfill(ctx, "req-1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(525), res.Reward)
}

func TestFulfill_BoostPeriodApplied(t *testing.T) {
	resolver, pending, merit, _ := newResolverHarness(t)
	seedPending(t, pending, "req-1", 1)

	merit.boostPeriod = true
	merit.periodPct = 300

	res, err := resolver.Fulfill(context.Background(), "req-1", 0)
	require.NoError(t, err)
	assert.True(t, res.BoostPeriodActive)
	assert.Equal(t, int64(1500), res.Reward)
}
