// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/boost-engine/internal/auth"
	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/service"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// BoostServiceInterface defines the orchestrator operations the API exposes
type BoostServiceInterface interface {
	Boost(ctx context.Context, input *service.BoostInput) (*service.BoostResult, error)
	PremiumBoost(ctx context.Context, input *service.PremiumBoostInput) (*service.PremiumBoostResult, error)
	MintBadge(ctx context.Context, user common.Address, milestone types.Milestone) error

	GetStreakInfo(ctx context.Context, user, totem common.Address) (*service.StreakInfo, error)
	GetBoostData(ctx context.Context, user common.Address) ([]*models.BoostRecord, error)
	GetAvailableBadges(ctx context.Context, user common.Address, milestone types.Milestone) (int, error)
	GetPremiumBoostConfig(ctx context.Context) (*service.PremiumBoostConfig, error)
	GetFreeBoostCooldown(ctx context.Context) (time.Duration, error)
	GetPendingPremium(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error)
	Leaderboard(ctx context.Context, totem common.Address, limit int) ([]*models.LeaderboardEntry, error)

	SetBoostRewardPoints(ctx context.Context, points int64) error
	SetPremiumBoostPrice(ctx context.Context, price *big.Int) error
	SetFreeBoostCooldown(ctx context.Context, cooldown time.Duration) error
	SetFrontendSigner(ctx context.Context, signer common.Address) error
	SetBadgeNFT(ctx context.Context, contract common.Address) error
	Pause(ctx context.Context) error
	Unpause(ctx context.Context) error
}

// FulfillerInterface resolves premium boosts from oracle callbacks
type FulfillerInterface interface {
	Fulfill(ctx context.Context, requestID string, randomWord uint64) (*service.FulfillResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	boosts     BoostServiceInterface
	fulfiller  FulfillerInterface
	manager    *auth.ManagerPolicy
	oracleKey  *auth.ManagerPolicy
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int

	// ManagerKey authorizes /api/admin endpoints
	ManagerKey string
	// OracleKey authorizes the fulfillment callback endpoint
	OracleKey string
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, boosts BoostServiceInterface, fulfiller FulfillerInterface) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		boosts:    boosts,
		fulfiller: fulfiller,
		manager:   auth.NewManagerPolicy(config.ManagerKey),
		oracleKey: auth.NewManagerPolicy(config.OracleKey),
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec)

	// Middleware order matters: logging first, rate limiting after CORS
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// API v1 routes
	api := s.router.PathPrefix("/api").Subrouter()

	// Boost endpoints
	api.HandleFunc("/boost", s.handleBoost).Methods("POST")
	api.HandleFunc("/boost/premium", s.handlePremiumBoost).Methods("POST")
	api.HandleFunc("/boost/premium/{requestId}", s.handleGetPendingPremium).Methods("GET")

	// Badge endpoints
	api.HandleFunc("/badges/mint", s.handleMintBadge).Methods("POST")

	// Query endpoints
	api.HandleFunc("/users/{user}/streaks/{totem}", s.handleGetStreakInfo).Methods("GET")
	api.HandleFunc("/users/{user}/boosts", s.handleGetBoostData).Methods("GET")
	api.HandleFunc("/users/{user}/badges/{milestone}", s.handleGetAvailableBadges).Methods("GET")
	api.HandleFunc("/totems/{totem}/leaderboard", s.handleLeaderboard).Methods("GET")
	api.HandleFunc("/config/premium", s.handleGetPremiumConfig).Methods("GET")
	api.HandleFunc("/config/cooldown", s.handleGetCooldown).Methods("GET")

	// Manager endpoints
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireManager)
	admin.HandleFunc("/reward-points", s.handleSetRewardPoints).Methods("PUT")
	admin.HandleFunc("/premium-price", s.handleSetPremiumPrice).Methods("PUT")
	admin.HandleFunc("/cooldown", s.handleSetCooldown).Methods("PUT")
	admin.HandleFunc("/signer", s.handleSetSigner).Methods("PUT")
	admin.HandleFunc("/badge-nft", s.handleSetBadgeNFT).Methods("PUT")
	admin.HandleFunc("/pause", s.handlePause).Methods("POST")
	admin.HandleFunc("/unpause", s.handleUnpause).Methods("POST")

	// Oracle callback endpoint
	s.router.HandleFunc("/oracle/fulfillments", s.handleOracleFulfillment).Methods("POST")
}

// requireManager gates admin routes on the manager key header
func (s *Server) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.manager.Authorize(r.Header.Get("X-Manager-Key")); err != nil {
			respondServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "boost-engine",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
