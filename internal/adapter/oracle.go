package adapter

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
)

// EthRandomOracle requests randomness from an on-chain VRF-style
// coordinator. Request ids are generated client-side and passed to the
// contract so the fulfillment event can be correlated without waiting
// for a transaction receipt.
type EthRandomOracle struct {
	client    *ethclient.Client
	sender    *txSender
	contract  common.Address
	parsed    abi.ABI
	lookback  uint64
	fulfillID common.Hash
}

// DefaultFulfillmentLookback is how many blocks back fulfillment
// events are searched on each poll.
const DefaultFulfillmentLookback = uint64(5000)

// NewEthRandomOracle creates an ethclient-backed randomness oracle
func NewEthRandomOracle(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, contract common.Address) (*EthRandomOracle, error) {
	parsed, err := abi.JSON(strings.NewReader(randomOracleABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse oracle ABI: %w", err)
	}
	sender, err := newTxSender(ctx, client, key)
	if err != nil {
		return nil, err
	}
	return &EthRandomOracle{
		client:    client,
		sender:    sender,
		contract:  contract,
		parsed:    parsed,
		lookback:  DefaultFulfillmentLookback,
		fulfillID: parsed.Events["RandomWordsFulfilled"].ID,
	}, nil
}

// Request submits a randomness request for one word
func (o *EthRandomOracle) Request(ctx context.Context) (string, error) {
	requestID := uuid.New().String()

	calldata, err := o.parsed.Pack("requestRandomWords", requestKey(requestID), uint32(1))
	if err != nil {
		return "", NewCollaboratorError("RandomOracle", "requestRandomWords", err)
	}
	if err := o.sender.send(ctx, o.contract, nil, calldata); err != nil {
		return "", NewCollaboratorError("RandomOracle", "requestRandomWords", err)
	}
	return requestID, nil
}

// Fulfillments scans recent fulfillment events for the given request ids
func (o *EthRandomOracle) Fulfillments(ctx context.Context, requestIDs []string) (map[string]uint64, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}

	head, err := o.client.BlockNumber(ctx)
	if err != nil {
		return nil, NewCollaboratorError("RandomOracle", "blockNumber", err)
	}
	from := uint64(0)
	if head > o.lookback {
		from = head - o.lookback
	}

	wanted := make(map[common.Hash]string, len(requestIDs))
	topics := make([]common.Hash, 0, len(requestIDs))
	for _, id := range requestIDs {
		key := requestKey(id)
		wanted[key] = id
		topics = append(topics, key)
	}

	logs, err := o.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{o.contract},
		Topics:    [][]common.Hash{{o.fulfillID}, topics},
	})
	if err != nil {
		return nil, NewCollaboratorError("RandomOracle", "filterLogs", err)
	}

	words := make(map[string]uint64)
	for _, entry := range logs {
		if len(entry.Topics) < 2 {
			continue
		}
		id, ok := wanted[entry.Topics[1]]
		if !ok {
			continue
		}
		out, err := o.parsed.Unpack("RandomWordsFulfilled", entry.Data)
		if err != nil {
			continue
		}
		words[id] = out[0].(*big.Int).Uint64()
	}

	return words, nil
}

// requestKey maps a request id string onto the bytes32 the contract
// indexes fulfillment events by.
func requestKey(requestID string) common.Hash {
	return crypto.Keccak256Hash([]byte(requestID))
}

// LocalRandomOracle is an in-process oracle for development and tests.
// Words derive from the request id, become available after a fixed
// delay, and are deterministic for a given id.
type LocalRandomOracle struct {
	mu      sync.Mutex
	pending map[string]time.Time
	delay   time.Duration
	now     func() time.Time
}

// NewLocalRandomOracle creates a local oracle with the given fulfillment delay
func NewLocalRandomOracle(delay time.Duration) *LocalRandomOracle {
	return &LocalRandomOracle{
		pending: make(map[string]time.Time),
		delay:   delay,
		now:     time.Now,
	}
}

// SetClock overrides the oracle clock, for tests
func (o *LocalRandomOracle) SetClock(now func() time.Time) {
	o.now = now
}

// Request records a pending request fulfilled after the configured delay
func (o *LocalRandomOracle) Request(_ context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	requestID := uuid.New().String()
	o.pending[requestID] = o.now().Add(o.delay)
	return requestID, nil
}

// Fulfillments returns words for requests whose delay has elapsed
func (o *LocalRandomOracle) Fulfillments(_ context.Context, requestIDs []string) (map[string]uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	words := make(map[string]uint64)
	for _, id := range requestIDs {
		due, ok := o.pending[id]
		if !ok || now.Before(due) {
			continue
		}
		digest := crypto.Keccak256([]byte(id))
		words[id] = binary.BigEndian.Uint64(digest[:8])
		delete(o.pending, id)
	}
	return words, nil
}
