package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boost-engine/internal/auth"
	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// In-memory fakes for the orchestrator's collaborators. Mutate clones
// the record before running fn so a failed mutation leaves the stored
// state untouched, matching the transactional repository.

func recordKey(user, totem common.Address) string {
	return strings.ToLower(user.Hex()) + "/" + strings.ToLower(totem.Hex())
}

type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.BoostRecord
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[string]*models.BoostRecord)}
}

func cloneRecord(rec *models.BoostRecord) *models.BoostRecord {
	clone := *rec
	clone.UnmintedBadges = make(map[types.Milestone]int, len(rec.UnmintedBadges))
	for m, n := range rec.UnmintedBadges {
		clone.UnmintedBadges[m] = n
	}
	return &clone
}

func (s *memRecordStore) Get(_ context.Context, user, totem common.Address) (*models.BoostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(user, totem)]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (s *memRecordStore) ListByUser(_ context.Context, user common.Address) ([]*models.BoostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BoostRecord
	for _, rec := range s.records {
		if rec.User == user {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Totem.Hex()) < strings.ToLower(out[j].Totem.Hex())
	})
	return out, nil
}

func (s *memRecordStore) Mutate(_ context.Context, user, totem common.Address, fn func(*models.BoostRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(user, totem)
	rec, ok := s.records[key]
	if !ok {
		rec = models.NewBoostRecord(user, totem)
	}
	work := cloneRecord(rec)
	if err := fn(work); err != nil {
		return err
	}
	s.records[key] = work
	return nil
}

type memPendingStore struct {
	mu       sync.Mutex
	requests map[string]*models.PendingPremiumRequest
}

func newMemPendingStore() *memPendingStore {
	return &memPendingStore{requests: make(map[string]*models.PendingPremiumRequest)}
}

func (s *memPendingStore) Create(_ context.Context, req *models.PendingPremiumRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *req
	s.requests[req.RequestID] = &clone
	return nil
}

func (s *memPendingStore) Get(_ context.Context, requestID string) (*models.PendingPremiumRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, nil
	}
	clone := *req
	return &clone, nil
}

func (s *memPendingStore) Delete(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[requestID]; !ok {
		return false, nil
	}
	delete(s.requests, requestID)
	return true, nil
}

func (s *memPendingStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.requests))
	for id := range s.requests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memPendingStore) ListOlderThan(_ context.Context, cutoff time.Time) ([]*models.PendingPremiumRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PendingPremiumRequest
	for _, req := range s.requests {
		if req.CreatedAt.Before(cutoff) {
			clone := *req
			out = append(out, &clone)
		}
	}
	return out, nil
}

type memSettingsStore struct {
	mu       sync.Mutex
	settings *models.EngineSettings
}

func newMemSettingsStore() *memSettingsStore {
	return &memSettingsStore{settings: models.DefaultEngineSettings()}
}

func (s *memSettingsStore) Get(_ context.Context) (*models.EngineSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *s.settings
	if s.settings.PremiumBoostPrice != nil {
		clone.PremiumBoostPrice = new(big.Int).Set(s.settings.PremiumBoostPrice)
	}
	return &clone, nil
}

func (s *memSettingsStore) Update(_ context.Context, settings *models.EngineSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *settings
	s.settings = &clone
	return nil
}

type memEventLog struct {
	mu     sync.Mutex
	events []*models.BoostEvent
}

func (l *memEventLog) Append(_ context.Context, event *models.BoostEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *event
	l.events = append(l.events, &clone)
	return nil
}

func (l *memEventLog) Leaderboard(_ context.Context, totem common.Address, limit int) ([]*models.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	totals := make(map[common.Address]*models.LeaderboardEntry)
	for _, ev := range l.events {
		if ev.Totem != totem {
			continue
		}
		entry, ok := totals[ev.User]
		if !ok {
			entry = &models.LeaderboardEntry{User: ev.User}
			totals[ev.User] = entry
		}
		entry.TotalReward += ev.Reward
		entry.BoostCount++
	}
	out := make([]*models.LeaderboardEntry, 0, len(totals))
	for _, entry := range totals {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalReward > out[j].TotalReward })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type creditCall struct {
	user   common.Address
	totem  common.Address
	amount int64
}

type fakeMeritManager struct {
	mu          sync.Mutex
	credits     []creditCall
	creditErr   error
	boostPeriod bool
	periodPct   int64
}

func (m *fakeMeritManager) CreditMerit(_ context.Context, user, totem common.Address, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return m.creditErr
	}
	m.credits = append(m.credits, creditCall{user: user, totem: totem, amount: amount})
	return nil
}

func (m *fakeMeritManager) IsBoostPeriod(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boostPeriod, nil
}

func (m *fakeMeritManager) BoostPeriodMultiplierPct(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodPct, nil
}

func (m *fakeMeritManager) totalCredited() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, c := range m.credits {
		total += c.amount
	}
	return total
}

type fakeTreasury struct {
	mu       sync.Mutex
	received []*big.Int
}

func (t *fakeTreasury) Receive(_ context.Context, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.received = append(t.received, new(big.Int).Set(amount))
	return nil
}

type fakeHoldings struct {
	denied map[string]bool
}

func (h *fakeHoldings) HasMinimumHolding(_ context.Context, user, totem common.Address) (bool, error) {
	return !h.denied[recordKey(user, totem)], nil
}

type fakeMinter struct {
	mu      sync.Mutex
	minted  []types.Milestone
	mintErr error
}

func (m *fakeMinter) Mint(_ context.Context, _ common.Address, milestone types.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mintErr != nil {
		return m.mintErr
	}
	m.minted = append(m.minted, milestone)
	return nil
}

type fakeOracle struct {
	mu          sync.Mutex
	nextRequest int
	requestErr  error
}

func (o *fakeOracle) Request(_ context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.requestErr != nil {
		return "", o.requestErr
	}
	o.nextRequest++
	return fmt.Sprintf("req-%d", o.nextRequest), nil
}

func (o *fakeOracle) Fulfillments(_ context.Context, _ []string) (map[string]uint64, error) {
	return nil, nil
}

// fakeQueryCache is a map-backed QueryCache storing marshaled JSON
type fakeQueryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func newFakeQueryCache() *fakeQueryCache {
	return &fakeQueryCache{entries: make(map[string][]byte)}
}

func (c *fakeQueryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	c.hits++
	return true, nil
}

func (c *fakeQueryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *fakeQueryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

type memConsumedStore struct {
	mu       sync.Mutex
	consumed map[common.Hash]bool
}

func newMemConsumedStore() *memConsumedStore {
	return &memConsumedStore{consumed: make(map[common.Hash]bool)}
}

func (s *memConsumedStore) Consume(_ context.Context, digest common.Hash, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed[digest] {
		return false, nil
	}
	s.consumed[digest] = true
	return true, nil
}

func (s *memConsumedStore) Release(_ context.Context, digest common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consumed, digest)
	return nil
}

func (s *memConsumedStore) isConsumed(digest common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed[digest]
}

// harness wires a BoostService over the fakes with a controllable clock

type harness struct {
	svc      *BoostService
	records  *memRecordStore
	pending  *memPendingStore
	settings *memSettingsStore
	events   *memEventLog
	merit    *fakeMeritManager
	treasury *fakeTreasury
	holdings *fakeHoldings
	minter   *fakeMinter
	oracle   *fakeOracle
	consumed *memConsumedStore

	signerKey *ecdsa.PrivateKey
	signer    common.Address

	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	h := &harness{
		records:   newMemRecordStore(),
		pending:   newMemPendingStore(),
		settings:  newMemSettingsStore(),
		events:    &memEventLog{},
		merit:     &fakeMeritManager{},
		treasury:  &fakeTreasury{},
		holdings:  &fakeHoldings{denied: make(map[string]bool)},
		minter:    &fakeMinter{},
		oracle:    &fakeOracle{},
		consumed:  newMemConsumedStore(),
		signerKey: key,
		signer:    crypto.PubkeyToAddress(key.PublicKey),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	verifier := auth.NewVerifier(h.consumed, 5*time.Minute)
	verifier.SetClock(h.clock)

	h.svc = NewBoostService(
		Config{DefaultSigner: h.signer, GraceDayInterval: 30},
		h.records, h.pending, h.settings, h.events,
		verifier, h.minter,
		h.merit, h.treasury, h.holdings, h.oracle,
	)
	h.svc.SetClock(h.clock)
	return h
}

func (h *harness) clock() time.Time {
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// signedBoost builds a BoostInput signed at the current clock
func (h *harness) signedBoost(t *testing.T, user, totem common.Address) *BoostInput {
	t.Helper()
	return h.signedBoostWith(t, h.signerKey, user, totem, h.now.Unix())
}

func (h *harness) signedBoostWith(t *testing.T, key *ecdsa.PrivateKey, user, totem common.Address, timestamp int64) *BoostInput {
	t.Helper()
	digest := auth.BoostMessageHash(user, totem, timestamp)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return &BoostInput{User: user, Totem: totem, Timestamp: timestamp, Signature: sig}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var serr *types.ServiceError
	require.ErrorAs(t, err, &serr, "expected a service error, got %v", err)
	require.Equal(t, code, serr.Code)
}
