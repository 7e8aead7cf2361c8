package api

import (
	"net/http"
	"strconv"

	"github.com/boost-engine/internal/types"
	"github.com/gorilla/mux"
)

// handleGetStreakInfo handles GET /api/users/{user}/streaks/{totem}
func (s *Server) handleGetStreakInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, ok := parseAddress(w, "user", vars["user"])
	if !ok {
		return
	}
	totem, ok := parseAddress(w, "totem", vars["totem"])
	if !ok {
		return
	}

	info, err := s.boosts.GetStreakInfo(r.Context(), user, totem)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// handleGetBoostData handles GET /api/users/{user}/boosts
func (s *Server) handleGetBoostData(w http.ResponseWriter, r *http.Request) {
	user, ok := parseAddress(w, "user", mux.Vars(r)["user"])
	if !ok {
		return
	}

	records, err := s.boosts.GetBoostData(r.Context(), user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":    user.Hex(),
		"records": records,
	})
}

// handleGetAvailableBadges handles GET /api/users/{user}/badges/{milestone}
func (s *Server) handleGetAvailableBadges(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, ok := parseAddress(w, "user", vars["user"])
	if !ok {
		return
	}

	milestoneDays, err := strconv.Atoi(vars["milestone"])
	if err != nil || !types.IsMilestone(milestoneDays) {
		respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "unknown milestone", map[string]interface{}{
			"milestone": vars["milestone"],
		})
		return
	}

	count, err := s.boosts.GetAvailableBadges(r.Context(), user, types.Milestone(milestoneDays))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user":      user.Hex(),
		"milestone": milestoneDays,
		"available": count,
	})
}

// handleLeaderboard handles GET /api/totems/{totem}/leaderboard
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	totem, ok := parseAddress(w, "totem", mux.Vars(r)["totem"])
	if !ok {
		return
	}

	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, types.CodeInvalidRequest, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	entries, err := s.boosts.Leaderboard(r.Context(), totem, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"totem":   totem.Hex(),
		"entries": entries,
	})
}

// handleGetPremiumConfig handles GET /api/config/premium
func (s *Server) handleGetPremiumConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.boosts.GetPremiumBoostConfig(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"price": cfg.Price.String(),
		"tiers": cfg.Tiers,
	})
}

// handleGetCooldown handles GET /api/config/cooldown
func (s *Server) handleGetCooldown(w http.ResponseWriter, r *http.Request) {
	cooldown, err := s.boosts.GetFreeBoostCooldown(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cooldownSeconds": int64(cooldown.Seconds()),
	})
}
