// Package worker runs the background loop that resolves premium boosts
// once the randomness oracle has answered their requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boost-engine/internal/adapter"
	"github.com/boost-engine/internal/circuitbreaker"
	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/retry"
	"github.com/boost-engine/internal/service"
	"github.com/boost-engine/internal/types"
)

// Resolver resolves one pending premium request with a random word
type Resolver interface {
	Fulfill(ctx context.Context, requestID string, randomWord uint64) (*service.FulfillResult, error)
}

// FulfillmentWorker polls the oracle for answered randomness requests
// and resolves the matching pending premium boosts. Requests the oracle
// has not answered stay pending; requests older than the stale age are
// logged but never cancelled, because the payment was already taken.
type FulfillmentWorker struct {
	pending  service.PendingStore
	oracle   adapter.RandomnessOracle
	resolver Resolver

	pollInterval time.Duration
	staleAge     time.Duration

	breaker     *circuitbreaker.CircuitBreaker
	retryConfig *retry.Config

	running       bool
	lastPollTime  time.Time
	pendingCount  int
	resolvedTotal int64
	mu            sync.RWMutex
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// FulfillmentWorkerConfig holds configuration for the fulfillment worker
type FulfillmentWorkerConfig struct {
	Pending  service.PendingStore
	Oracle   adapter.RandomnessOracle
	Resolver Resolver

	// PollInterval between oracle queries (default: 15 seconds)
	PollInterval time.Duration

	// StaleAge after which an unanswered request is logged as stale
	// (default: 24 hours)
	StaleAge time.Duration
}

// NewFulfillmentWorker creates a fulfillment worker
func NewFulfillmentWorker(cfg *FulfillmentWorkerConfig) (*FulfillmentWorker, error) {
	if cfg.Pending == nil {
		return nil, fmt.Errorf("pending store cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, fmt.Errorf("oracle cannot be nil")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 15 * time.Second
	}
	if pollInterval < time.Second {
		return nil, fmt.Errorf("poll interval must be at least 1 second, got %v", pollInterval)
	}

	staleAge := cfg.StaleAge
	if staleAge == 0 {
		staleAge = 24 * time.Hour
	}

	return &FulfillmentWorker{
		pending:      cfg.Pending,
		oracle:       cfg.Oracle,
		resolver:     cfg.Resolver,
		pollInterval: pollInterval,
		staleAge:     staleAge,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("oracle")),
		retryConfig: &retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the polling loop
func (w *FulfillmentWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("fulfillment worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	logging.GetGlobalLogger().
		WithField("poll_interval", w.pollInterval.String()).
		Info("Starting fulfillment worker")

	go w.pollLoop(ctx)
	return nil
}

// Stop gracefully stops the worker
func (w *FulfillmentWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("fulfillment worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	logging.GetGlobalLogger().Info("Fulfillment worker stopped")
	return nil
}

func (w *FulfillmentWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.lastPollTime = time.Now()
			w.mu.Unlock()

			resolved, err := w.Poll(ctx)
			if err != nil {
				logging.GetGlobalLogger().WithError(err).Error("Fulfillment poll failed")
				continue
			}
			if resolved > 0 {
				logging.GetGlobalLogger().
					WithField("resolved", resolved).
					Info("Resolved premium boosts")
			}
		}
	}
}

// Poll runs one fulfillment cycle: list pending requests, ask the
// oracle for answers, resolve each answered request. Returns the
// number of requests resolved.
func (w *FulfillmentWorker) Poll(ctx context.Context) (int, error) {
	logger := logging.GetGlobalLogger()

	ids, err := w.pending.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending requests: %w", err)
	}

	w.mu.Lock()
	w.pendingCount = len(ids)
	w.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}

	w.logStale(ctx)

	var words map[string]uint64
	err = w.breaker.Execute(ctx, func() error {
		result := retry.WithExponentialBackoff(ctx, w.retryConfig, func(ctx context.Context, _ int) error {
			var fetchErr error
			words, fetchErr = w.oracle.Fulfillments(ctx, ids)
			return fetchErr
		})
		if !result.Success {
			return result.LastError
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			logger.Warn("Oracle circuit open, skipping fulfillment cycle")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query oracle fulfillments: %w", err)
	}

	resolved := 0
	for _, id := range ids {
		word, ok := words[id]
		if !ok {
			continue
		}

		result, err := w.resolver.Fulfill(ctx, id, word)
		if err != nil {
			var serr *types.ServiceError
			if errors.As(err, &serr) && serr.Code == types.CodeRequestNotFound {
				// Already resolved through the callback endpoint
				continue
			}
			logger.WithError(err).
				WithField("request_id", id).
				Error("Failed to resolve premium boost")
			continue
		}

		resolved++
		logger.WithFields(map[string]interface{}{
			"request_id": id,
			"reward":     result.Reward,
			"tier":       result.Tier.BasePoints,
		}).Info("Premium boost resolved")
	}

	w.mu.Lock()
	w.resolvedTotal += int64(resolved)
	w.mu.Unlock()

	return resolved, nil
}

// logStale surfaces requests the oracle has left unanswered too long
func (w *FulfillmentWorker) logStale(ctx context.Context) {
	stale, err := w.pending.ListOlderThan(ctx, time.Now().Add(-w.staleAge))
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Warn("Failed to check for stale requests")
		return
	}
	for _, req := range stale {
		logging.GetGlobalLogger().WithFields(map[string]interface{}{
			"request_id": req.RequestID,
			"user":       req.User.Hex(),
			"age":        time.Since(req.CreatedAt).String(),
		}).Warn("Premium boost request still unanswered")
	}
}

// FulfillmentWorkerStatus represents the worker's current state
type FulfillmentWorkerStatus struct {
	Running             bool      `json:"running"`
	LastPollTime        time.Time `json:"lastPollTime"`
	PendingCount        int       `json:"pendingCount"`
	ResolvedTotal       int64     `json:"resolvedTotal"`
	PollIntervalSeconds int       `json:"pollIntervalSeconds"`
}

// GetStatus returns current worker status
func (w *FulfillmentWorker) GetStatus() *FulfillmentWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &FulfillmentWorkerStatus{
		Running:             w.running,
		LastPollTime:        w.lastPollTime,
		PendingCount:        w.pendingCount,
		ResolvedTotal:       w.resolvedTotal,
		PollIntervalSeconds: int(w.pollInterval.Seconds()),
	}
}
