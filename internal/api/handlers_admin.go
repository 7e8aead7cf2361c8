package api

import (
	"math/big"
	"net/http"
	"time"

	"github.com/boost-engine/internal/types"
)

// Manager endpoints. The requireManager middleware has already
// authorized the caller when these run.

type setRewardPointsRequest struct {
	Points int64 `json:"points"`
}

// handleSetRewardPoints handles PUT /api/admin/reward-points
func (s *Server) handleSetRewardPoints(w http.ResponseWriter, r *http.Request) {
	var req setRewardPointsRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	if err := s.boosts.SetBoostRewardPoints(r.Context(), req.Points); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"points": req.Points})
}

type setPremiumPriceRequest struct {
	Price string `json:"price"`
}

// handleSetPremiumPrice handles PUT /api/admin/premium-price
func (s *Server) handleSetPremiumPrice(w http.ResponseWriter, r *http.Request) {
	var req setPremiumPriceRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	price, ok := new(big.Int).SetString(req.Price, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "price must be a decimal wei amount", nil)
		return
	}

	if err := s.boosts.SetPremiumBoostPrice(r.Context(), price); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"price": price.String()})
}

type setCooldownRequest struct {
	CooldownSeconds int64 `json:"cooldownSeconds"`
}

// handleSetCooldown handles PUT /api/admin/cooldown
func (s *Server) handleSetCooldown(w http.ResponseWriter, r *http.Request) {
	var req setCooldownRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	cooldown := time.Duration(req.CooldownSeconds) * time.Second
	if err := s.boosts.SetFreeBoostCooldown(r.Context(), cooldown); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"cooldownSeconds": req.CooldownSeconds})
}

type setSignerRequest struct {
	Signer string `json:"signer"`
}

// handleSetSigner handles PUT /api/admin/signer
func (s *Server) handleSetSigner(w http.ResponseWriter, r *http.Request) {
	var req setSignerRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	signer, ok := parseAddress(w, "signer", req.Signer)
	if !ok {
		return
	}

	if err := s.boosts.SetFrontendSigner(r.Context(), signer); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"signer": signer.Hex()})
}

type setBadgeNFTRequest struct {
	Contract string `json:"contract"`
}

// handleSetBadgeNFT handles PUT /api/admin/badge-nft
func (s *Server) handleSetBadgeNFT(w http.ResponseWriter, r *http.Request) {
	var req setBadgeNFTRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "invalid request body", nil)
		return
	}

	contract, ok := parseAddress(w, "contract", req.Contract)
	if !ok {
		return
	}

	if err := s.boosts.SetBadgeNFT(r.Context(), contract); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"contract": contract.Hex()})
}

// handlePause handles POST /api/admin/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.boosts.Pause(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"paused": true})
}

// handleUnpause handles POST /api/admin/unpause
func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	if err := s.boosts.Unpause(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"paused": false})
}
