package api

import (
	"math/big"
	"net/http"

	"github.com/boost-engine/internal/service"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
)

// parseAddress validates and parses a hex address field. On failure it
// writes the error response and returns false.
func parseAddress(w http.ResponseWriter, field, value string) (common.Address, bool) {
	if !common.IsHexAddress(value) {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid address", map[string]interface{}{
			"field": field,
			"value": value,
		})
		return common.Address{}, false
	}
	return common.HexToAddress(value), true
}

type boostRequest struct {
	User      string `json:"user"`
	Totem     string `json:"totem"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// handleBoost handles POST /api/boost
func (s *Server) handleBoost(w http.ResponseWriter, r *http.Request) {
	var req boostRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	user, ok := parseAddress(w, "user", req.User)
	if !ok {
		return
	}
	totem, ok := parseAddress(w, "totem", req.Totem)
	if !ok {
		return
	}

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "signature must be 0x-prefixed hex", nil)
		return
	}

	result, err := s.boosts.Boost(r.Context(), &service.BoostInput{
		User:      user,
		Totem:     totem,
		Timestamp: req.Timestamp,
		Signature: signature,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type premiumBoostRequest struct {
	User    string `json:"user"`
	Totem   string `json:"totem"`
	Payment string `json:"payment"`
}

// handlePremiumBoost handles POST /api/boost/premium
func (s *Server) handlePremiumBoost(w http.ResponseWriter, r *http.Request) {
	var req premiumBoostRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	user, ok := parseAddress(w, "user", req.User)
	if !ok {
		return
	}
	totem, ok := parseAddress(w, "totem", req.Totem)
	if !ok {
		return
	}

	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok || payment.Sign() < 0 {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "payment must be a non-negative decimal wei amount", nil)
		return
	}

	result, err := s.boosts.PremiumBoost(r.Context(), &service.PremiumBoostInput{
		User:    user,
		Totem:   totem,
		Payment: payment,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// 202: the reward arrives asynchronously once the oracle answers
	respondJSON(w, http.StatusAccepted, result)
}

// handleGetPendingPremium handles GET /api/boost/premium/{requestId}
func (s *Server) handleGetPendingPremium(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	req, err := s.boosts.GetPendingPremium(r.Context(), requestID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, req)
}

type mintBadgeRequest struct {
	User      string `json:"user"`
	Milestone int    `json:"milestone"`
}

// handleMintBadge handles POST /api/badges/mint
func (s *Server) handleMintBadge(w http.ResponseWriter, r *http.Request) {
	var req mintBadgeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	user, ok := parseAddress(w, "user", req.User)
	if !ok {
		return
	}

	milestone := types.Milestone(req.Milestone)
	if !types.IsMilestone(req.Milestone) {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "unknown milestone", map[string]interface{}{
			"milestone": req.Milestone,
		})
		return
	}

	if err := s.boosts.MintBadge(r.Context(), user, milestone); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"minted":    true,
		"milestone": milestone,
	})
}

type fulfillmentRequest struct {
	RequestID  string `json:"requestId"`
	RandomWord uint64 `json:"randomWord"`
}

// handleOracleFulfillment handles POST /oracle/fulfillments. The
// endpoint is keyed separately from the manager role since only the
// oracle bridge calls it.
func (s *Server) handleOracleFulfillment(w http.ResponseWriter, r *http.Request) {
	if err := s.oracleKey.Authorize(r.Header.Get("X-Oracle-Key")); err != nil {
		respondServiceError(w, err)
		return
	}

	var req fulfillmentRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}
	if req.RequestID == "" {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "requestId is required", nil)
		return
	}

	result, err := s.fulfiller.Fulfill(r.Context(), req.RequestID, req.RandomWord)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
