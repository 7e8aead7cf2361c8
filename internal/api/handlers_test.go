package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/reward"
	"github.com/boost-engine/internal/service"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBoostService implements BoostServiceInterface with overridable
// function fields.
type stubBoostService struct {
	boostFn   func(ctx context.Context, input *service.BoostInput) (*service.BoostResult, error)
	premiumFn func(ctx context.Context, input *service.PremiumBoostInput) (*service.PremiumBoostResult, error)
	mintFn    func(ctx context.Context, user common.Address, milestone types.Milestone) error
	pendingFn func(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error)

	pauseCalls int
	setPoints  int64
}

func (s *stubBoostService) Boost(ctx context.Context, input *service.BoostInput) (*service.BoostResult, error) {
	if s.boostFn != nil {
		return s.boostFn(ctx, input)
	}
	return &service.BoostResult{Reward: 100, StreakLength: 1}, nil
}

func (s *stubBoostService) PremiumBoost(ctx context.Context, input *service.PremiumBoostInput) (*service.PremiumBoostResult, error) {
	if s.premiumFn != nil {
		return s.premiumFn(ctx, input)
	}
	return &service.PremiumBoostResult{RequestID: "req-1", Refund: big.NewInt(0), StreakLength: 1}, nil
}

func (s *stubBoostService) MintBadge(ctx context.Context, user common.Address, milestone types.Milestone) error {
	if s.mintFn != nil {
		return s.mintFn(ctx, user, milestone)
	}
	return nil
}

func (s *stubBoostService) GetStreakInfo(_ context.Context, user, totem common.Address) (*service.StreakInfo, error) {
	return &service.StreakInfo{User: user, Totem: totem, StreakLength: 3}, nil
}

func (s *stubBoostService) GetBoostData(_ context.Context, user common.Address) ([]*models.BoostRecord, error) {
	return []*models.BoostRecord{models.NewBoostRecord(user, common.Address{})}, nil
}

func (s *stubBoostService) GetAvailableBadges(_ context.Context, _ common.Address, _ types.Milestone) (int, error) {
	return 2, nil
}

func (s *stubBoostService) GetPremiumBoostConfig(_ context.Context) (*service.PremiumBoostConfig, error) {
	return &service.PremiumBoostConfig{Price: models.DefaultPremiumBoostPrice(), Tiers: reward.PremiumTiers}, nil
}

func (s *stubBoostService) GetFreeBoostCooldown(_ context.Context) (time.Duration, error) {
	return 24 * time.Hour, nil
}

func (s *stubBoostService) GetPendingPremium(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error) {
	if s.pendingFn != nil {
		return s.pendingFn(ctx, requestID)
	}
	return &models.PendingPremiumRequest{RequestID: requestID}, nil
}

func (s *stubBoostService) Leaderboard(_ context.Context, _ common.Address, limit int) ([]*models.LeaderboardEntry, error) {
	entries := []*models.LeaderboardEntry{{TotalReward: 205, BoostCount: 2}}
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *stubBoostService) SetBoostRewardPoints(_ context.Context, points int64) error {
	s.setPoints = points
	return nil
}

func (s *stubBoostService) SetPremiumBoostPrice(_ context.Context, _ *big.Int) error { return nil }
func (s *stubBoostService) SetFreeBoostCooldown(_ context.Context, _ time.Duration) error {
	return nil
}
func (s *stubBoostService) SetFrontendSigner(_ context.Context, _ common.Address) error { return nil }
func (s *stubBoostService) SetBadgeNFT(_ context.Context, _ common.Address) error       { return nil }

func (s *stubBoostService) Pause(_ context.Context) error {
	s.pauseCalls++
	return nil
}

func (s *stubBoostService) Unpause(_ context.Context) error { return nil }

type stubFulfiller struct {
	fulfillFn func(ctx context.Context, requestID string, randomWord uint64) (*service.FulfillResult, error)
}

func (f *stubFulfiller) Fulfill(ctx context.Context, requestID string, randomWord uint64) (*service.FulfillResult, error) {
	if f.fulfillFn != nil {
		return f.fulfillFn(ctx, requestID, randomWord)
	}
	return &service.FulfillResult{RequestID: requestID, Reward: 500}, nil
}

func newTestServer(t *testing.T) (*Server, *stubBoostService, *stubFulfiller) {
	t.Helper()
	boosts := &stubBoostService{}
	fulfiller := &stubFulfiller{}
	srv := NewServer(&ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RequestsPerSec: 100,
		ManagerKey:     "manager-secret",
		OracleKey:      "oracle-secret",
	}, boosts, fulfiller)
	return srv, boosts, fulfiller
}

func doRequest(srv *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

const (
	userHex  = "0x1111111111111111111111111111111111111111"
	totemHex = "0x2222222222222222222222222222222222222222"
)

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doRequest(srv, "GET", "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	decodeBody(t, rr, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleBoost(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := doRequest(srv, "POST", "/api/boost", map[string]interface{}{
		"user":      userHex,
		"totem":     totemHex,
		"timestamp": 1767225600,
		"signature": "0xdeadbeef",
	}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result service.BoostResult
	decodeBody(t, rr, &result)
	assert.Equal(t, int64(100), result.Reward)
	assert.Equal(t, 1, result.StreakLength)
}

func TestHandleBoost_InvalidAddress(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := doRequest(srv, "POST", "/api/boost", map[string]interface{}{
		"user":      "not-an-address",
		"totem":     totemHex,
		"timestamp": 1767225600,
		"signature": "0x00",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body ErrorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, types.CodeInvalidRequest, body.Error.Code)
}

func TestHandleBoost_ErrorMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{types.CodeInvalidSignature, http.StatusUnauthorized},
		{types.CodeSignatureExpired, http.StatusUnauthorized},
		{types.CodeSignatureAlreadyUsed, http.StatusConflict},
		{types.CodeNotEnoughTokens, http.StatusForbidden},
		{types.CodeNotEnoughTimePassed, http.StatusTooManyRequests},
		{types.CodeTotemNotRegistered, http.StatusBadRequest},
		{types.CodeSystemPaused, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv, boosts, _ := newTestServer(t)
			boosts.boostFn = func(_ context.Context, _ *service.BoostInput) (*service.BoostResult, error) {
				return nil, &types.ServiceError{Code: tt.code, Message: "nope"}
			}

			rr := doRequest(srv, "POST", "/api/boost", map[string]interface{}{
				"user":      userHex,
				"totem":     totemHex,
				"timestamp": 1767225600,
				"signature": "0x00",
			}, nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var body ErrorResponse
			decodeBody(t, rr, &body)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestHandlePremiumBoost(t *testing.T) {
	srv, boosts, _ := newTestServer(t)
	boosts.premiumFn = func(_ context.Context, input *service.PremiumBoostInput) (*service.PremiumBoostResult, error) {
		return &service.PremiumBoostResult{
			RequestID:    "req-9",
			Refund:       new(big.Int).Sub(input.Payment, models.DefaultPremiumBoostPrice()),
			StreakLength: 4,
		}, nil
	}

	payment := new(big.Int).Add(models.DefaultPremiumBoostPrice(), big.NewInt(5))
	rr := doRequest(srv, "POST", "/api/boost/premium", map[string]interface{}{
		"user":    userHex,
		"totem":   totemHex,
		"payment": payment.String(),
	}, nil)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var result map[string]interface{}
	decodeBody(t, rr, &result)
	assert.Equal(t, "req-9", result["requestId"])
}

func TestHandlePremiumBoost_InsufficientPayment(t *testing.T) {
	srv, boosts, _ := newTestServer(t)
	boosts.premiumFn = func(_ context.Context, _ *service.PremiumBoostInput) (*service.PremiumBoostResult, error) {
		return nil, &types.ServiceError{Code: types.CodeInsufficientPayment, Message: "too low"}
	}

	rr := doRequest(srv, "POST", "/api/boost/premium", map[string]interface{}{
		"user":    userHex,
		"totem":   totemHex,
		"payment": "1",
	}, nil)

	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
}

func TestHandlePremiumBoost_BadPayment(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := doRequest(srv, "POST", "/api/boost/premium", map[string]interface{}{
		"user":    userHex,
		"totem":   totemHex,
		"payment": "0x10",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleGetPendingPremium_NotFound(t *testing.T) {
	srv, boosts, _ := newTestServer(t)
	boosts.pendingFn = func(_ context.Context, requestID string) (*models.PendingPremiumRequest, error) {
		return nil, &types.ServiceError{Code: types.CodeRequestNotFound, Message: "unknown"}
	}

	rr := doRequest(srv, "GET", "/api/boost/premium/req-gone", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleMintBadge_UnknownMilestone(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := doRequest(srv, "POST", "/api/badges/mint", map[string]interface{}{
		"user":      userHex,
		"milestone": 13,
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMilestoneValidation_AllDefinedMilestones(t *testing.T) {
	srv, boosts, _ := newTestServer(t)
	var minted []types.Milestone
	boosts.mintFn = func(_ context.Context, _ common.Address, milestone types.Milestone) error {
		minted = append(minted, milestone)
		return nil
	}

	for _, m := range types.Milestones {
		rr := doRequest(srv, "POST", "/api/badges/mint", map[string]interface{}{
			"user":      userHex,
			"milestone": int(m),
		}, nil)
		assert.Equal(t, http.StatusOK, rr.Code, "milestone %d", m)

		rr = doRequest(srv, "GET", fmt.Sprintf("/api/users/%s/badges/%d", userHex, m), nil, nil)
		assert.Equal(t, http.StatusOK, rr.Code, "milestone %d", m)
	}
	assert.Equal(t, types.Milestones, minted)

	// A streak length that is not in the milestone table is rejected by
	// both endpoints before reaching the service.
	rr := doRequest(srv, "POST", "/api/badges/mint", map[string]interface{}{
		"user":      userHex,
		"milestone": 8,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(srv, "GET", fmt.Sprintf("/api/users/%s/badges/8", userHex), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleMintBadge_NotAchieved(t *testing.T) {
	srv, boosts, _ := newTestServer(t)
	boosts.mintFn = func(_ context.Context, _ common.Address, _ types.Milestone) error {
		return &types.ServiceError{Code: types.CodeMilestoneNotAchieved, Message: "no badge"}
	}

	rr := doRequest(srv, "POST", "/api/badges/mint", map[string]interface{}{
		"user":      userHex,
		"milestone": 7,
	}, nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestQueryEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := doRequest(srv, "GET", fmt.Sprintf("/api/users/%s/streaks/%s", userHex, totemHex), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var info service.StreakInfo
	decodeBody(t, rr, &info)
	assert.Equal(t, 3, info.StreakLength)

	rr = doRequest(srv, "GET", fmt.Sprintf("/api/users/%s/badges/7", userHex), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(srv, "GET", fmt.Sprintf("/api/users/%s/badges/13", userHex), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(srv, "GET", fmt.Sprintf("/api/totems/%s/leaderboard?limit=5", totemHex), nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(srv, "GET", "/api/config/premium", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	var premiumCfg map[string]interface{}
	decodeBody(t, rr, &premiumCfg)
	assert.Equal(t, models.DefaultPremiumBoostPrice().String(), premiumCfg["price"])

	rr = doRequest(srv, "GET", "/api/config/cooldown", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminRequiresManagerKey(t *testing.T) {
	srv, boosts, _ := newTestServer(t)

	rr := doRequest(srv, "POST", "/api/admin/pause", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, boosts.pauseCalls)

	rr = doRequest(srv, "POST", "/api/admin/pause", nil, map[string]string{"X-Manager-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(srv, "POST", "/api/admin/pause", nil, map[string]string{"X-Manager-Key": "manager-secret"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, boosts.pauseCalls)
}

func TestAdminSetRewardPoints(t *testing.T) {
	srv, boosts, _ := newTestServer(t)

	rr := doRequest(srv, "PUT", "/api/admin/reward-points",
		map[string]interface{}{"points": 250},
		map[string]string{"X-Manager-Key": "manager-secret"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(250), boosts.setPoints)
}

func TestOracleFulfillment(t *testing.T) {
	srv, _, fulfiller := newTestServer(t)

	var gotID string
	var gotWord uint64
	fulfiller.fulfillFn = func(_ context.Context, requestID string, randomWord uint64) (*service.FulfillResult, error) {
		gotID = requestID
		gotWord = randomWord
		return &service.FulfillResult{RequestID: requestID, Reward: 700}, nil
	}

	rr := doRequest(srv, "POST", "/oracle/fulfillments", map[string]interface{}{
		"requestId":  "req-1",
		"randomWord": 55,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(srv, "POST", "/oracle/fulfillments", map[string]interface{}{
		"requestId":  "req-1",
		"randomWord": 55,
	}, map[string]string{"X-Oracle-Key": "oracle-secret"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, uint64(55), gotWord)
}

func TestRateLimiting(t *testing.T) {
	boosts := &stubBoostService{}
	srv := NewServer(&ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RequestsPerSec: 1,
		ManagerKey:     "k",
		OracleKey:      "k",
	}, boosts, &stubFulfiller{})

	limited := false
	for i := 0; i < 20; i++ {
		rr := doRequest(srv, "GET", "/health", nil, map[string]string{"X-User-Address": userHex})
		if rr.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the burst to hit the rate limit")
}
