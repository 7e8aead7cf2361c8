package adapter

import (
	"fmt"
	"sync"
	"time"
)

// RPCProvider tracks the health of the chain RPC endpoint pair the
// collaborator clients dial, with failover to a secondary endpoint.
type RPCProvider struct {
	mu sync.RWMutex

	primaryURL   string
	secondaryURL string
	currentURL   string

	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	consecutiveFails int

	maxConsecutiveFails int
	minSuccessRate      float64
}

// ProviderHealth represents the health status of the RPC provider
type ProviderHealth struct {
	CurrentURL       string        `json:"currentUrl"`
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
}

// NewRPCProvider creates a provider with a primary and optional secondary URL
func NewRPCProvider(primaryURL, secondaryURL string) (*RPCProvider, error) {
	if primaryURL == "" {
		return nil, fmt.Errorf("primary URL cannot be empty")
	}
	return &RPCProvider{
		primaryURL:          primaryURL,
		secondaryURL:        secondaryURL,
		currentURL:          primaryURL,
		maxConsecutiveFails: 5,
		minSuccessRate:      0.8,
	}, nil
}

// CurrentURL returns the currently active RPC endpoint
func (p *RPCProvider) CurrentURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentURL
}

// Failover switches to the secondary endpoint if one is configured
func (p *RPCProvider) Failover() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.secondaryURL == "" || p.currentURL == p.secondaryURL {
		return fmt.Errorf("no failover endpoint available")
	}
	p.currentURL = p.secondaryURL
	p.consecutiveFails = 0
	return nil
}

// Reset switches back to the primary endpoint
func (p *RPCProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentURL = p.primaryURL
	p.consecutiveFails = 0
}

// RecordSuccess records a successful request for health tracking
func (p *RPCProvider) RecordSuccess(duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRequests++
	p.successfulReqs++
	p.totalLatency += duration
	p.lastSuccess = time.Now()
	p.consecutiveFails = 0
}

// RecordFailure records a failed request for health tracking
func (p *RPCProvider) RecordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRequests++
	p.failedReqs++
	p.lastFailure = time.Now()
	p.consecutiveFails++
}

// IsHealthy reports whether the current endpoint is considered healthy
func (p *RPCProvider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.consecutiveFails >= p.maxConsecutiveFails {
		return false
	}
	if p.totalRequests >= 10 {
		rate := float64(p.successfulReqs) / float64(p.totalRequests)
		if rate < p.minSuccessRate {
			return false
		}
	}
	return true
}

// Health returns a snapshot of the provider's health counters
func (p *RPCProvider) Health() *ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var rate float64
	var avgLatency time.Duration
	if p.totalRequests > 0 {
		rate = float64(p.successfulReqs) / float64(p.totalRequests)
	}
	if p.successfulReqs > 0 {
		avgLatency = p.totalLatency / time.Duration(p.successfulReqs)
	}

	healthy := p.consecutiveFails < p.maxConsecutiveFails &&
		(p.totalRequests < 10 || rate >= p.minSuccessRate)

	return &ProviderHealth{
		CurrentURL:       p.currentURL,
		TotalRequests:    p.totalRequests,
		SuccessfulReqs:   p.successfulReqs,
		FailedReqs:       p.failedReqs,
		SuccessRate:      rate,
		AverageLatency:   avgLatency,
		ConsecutiveFails: p.consecutiveFails,
		IsHealthy:        healthy,
	}
}
