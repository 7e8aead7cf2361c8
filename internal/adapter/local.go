package adapter

import (
	"context"
	"math/big"
	"sync"

	"github.com/boost-engine/internal/logging"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// In-process collaborator stand-ins for development environments
// without a chain. They keep enough state to make the API observable
// but persist nothing.

// LocalMeritManager keeps merit balances in memory
type LocalMeritManager struct {
	mu          sync.Mutex
	balances    map[common.Address]map[common.Address]int64
	boostPeriod bool
	periodPct   int64
}

// NewLocalMeritManager creates an in-memory merit ledger
func NewLocalMeritManager() *LocalMeritManager {
	return &LocalMeritManager{balances: make(map[common.Address]map[common.Address]int64)}
}

// CreditMerit credits merit in memory. Every totem counts as registered.
func (m *LocalMeritManager) CreditMerit(_ context.Context, user, totem common.Address, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[totem] == nil {
		m.balances[totem] = make(map[common.Address]int64)
	}
	m.balances[totem][user] += amount
	return nil
}

// IsBoostPeriod reports the locally toggled boost period
func (m *LocalMeritManager) IsBoostPeriod(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boostPeriod, nil
}

// BoostPeriodMultiplierPct returns the locally configured multiplier
func (m *LocalMeritManager) BoostPeriodMultiplierPct(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodPct, nil
}

// SetBoostPeriod toggles the boost period for local testing
func (m *LocalMeritManager) SetBoostPeriod(active bool, pct int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boostPeriod = active
	m.periodPct = pct
}

// Balance returns the credited merit for a (user, totem) pair
func (m *LocalMeritManager) Balance(user, totem common.Address) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[totem][user]
}

// LocalTreasury counts received payments
type LocalTreasury struct {
	mu    sync.Mutex
	total *big.Int
}

// NewLocalTreasury creates an in-memory treasury
func NewLocalTreasury() *LocalTreasury {
	return &LocalTreasury{total: new(big.Int)}
}

// Receive accumulates the payment
func (t *LocalTreasury) Receive(_ context.Context, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Add(t.total, amount)
	return nil
}

// Total returns the accumulated payments
func (t *LocalTreasury) Total() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.total)
}

// LocalBadgeMinter logs mints instead of submitting transactions
type LocalBadgeMinter struct{}

// NewLocalBadgeMinter creates a log-only badge minter
func NewLocalBadgeMinter() *LocalBadgeMinter {
	return &LocalBadgeMinter{}
}

// Mint logs the badge mint
func (m *LocalBadgeMinter) Mint(ctx context.Context, user common.Address, milestone types.Milestone) error {
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"user":      user.Hex(),
		"milestone": int(milestone),
	}).Info("Local badge mint")
	return nil
}

// LocalHoldingChecker approves every holding check
type LocalHoldingChecker struct{}

// NewLocalHoldingChecker creates a checker that always passes
func NewLocalHoldingChecker() *LocalHoldingChecker {
	return &LocalHoldingChecker{}
}

// HasMinimumHolding always reports true
func (c *LocalHoldingChecker) HasMinimumHolding(_ context.Context, _, _ common.Address) (bool, error) {
	return true, nil
}
