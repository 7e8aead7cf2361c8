package adapter

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Contract ABIs for the collaborator calls the engine makes
const (
	meritManagerABI = `[
		{"inputs":[{"name":"user","type":"address"},{"name":"totem","type":"address"},{"name":"amount","type":"uint256"}],"name":"creditMerit","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[],"name":"isBoostPeriod","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"boostPeriodMultiplier","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"totem","type":"address"}],"name":"isRegistered","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}
	]`

	erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

	badgeNFTABI = `[{"inputs":[{"name":"to","type":"address"},{"name":"milestoneId","type":"uint256"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	randomOracleABI = `[
		{"inputs":[{"name":"requestId","type":"bytes32"},{"name":"numWords","type":"uint32"}],"name":"requestRandomWords","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"anonymous":false,"inputs":[{"indexed":true,"name":"requestId","type":"bytes32"},{"indexed":false,"name":"word","type":"uint256"}],"name":"RandomWordsFulfilled","type":"event"}
	]`
)

// txSender signs and submits contract transactions for the engine's
// operator key.
type txSender struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

func newTxSender(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey) (*txSender, error) {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	return &txSender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

// send submits a transaction to the given contract and waits for
// inclusion is left to the caller; collaborator semantics only need
// acceptance into the pool.
func (s *txSender) send(ctx context.Context, to common.Address, value *big.Int, calldata []byte) error {
	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.from,
		To:    &to,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		return fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, calldata)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	return s.client.SendTransaction(ctx, signed)
}

// EthMeritManager talks to the on-chain merit ledger contract
type EthMeritManager struct {
	client   *ethclient.Client
	sender   *txSender
	contract common.Address
	parsed   abi.ABI
}

// NewEthMeritManager creates an ethclient-backed merit manager
func NewEthMeritManager(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, contract common.Address) (*EthMeritManager, error) {
	parsed, err := abi.JSON(strings.NewReader(meritManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse merit manager ABI: %w", err)
	}
	sender, err := newTxSender(ctx, client, key)
	if err != nil {
		return nil, err
	}
	return &EthMeritManager{client: client, sender: sender, contract: contract, parsed: parsed}, nil
}

// CreditMerit credits merit to a totem; reverts if the totem is not registered
func (m *EthMeritManager) CreditMerit(ctx context.Context, user, totem common.Address, amount int64) error {
	registered, err := m.isRegistered(ctx, totem)
	if err != nil {
		return NewCollaboratorError("MeritManager", "isRegistered", err)
	}
	if !registered {
		return ErrTotemNotRegistered
	}

	calldata, err := m.parsed.Pack("creditMerit", user, totem, big.NewInt(amount))
	if err != nil {
		return NewCollaboratorError("MeritManager", "creditMerit", err)
	}
	if err := m.sender.send(ctx, m.contract, nil, calldata); err != nil {
		return NewCollaboratorError("MeritManager", "creditMerit", err)
	}
	return nil
}

// IsBoostPeriod reads whether a boost period is active
func (m *EthMeritManager) IsBoostPeriod(ctx context.Context) (bool, error) {
	var active bool
	if err := m.callView(ctx, "isBoostPeriod", &active); err != nil {
		return false, NewCollaboratorError("MeritManager", "isBoostPeriod", err)
	}
	return active, nil
}

// BoostPeriodMultiplierPct reads the active period multiplier
func (m *EthMeritManager) BoostPeriodMultiplierPct(ctx context.Context) (int64, error) {
	var pct *big.Int
	if err := m.callView(ctx, "boostPeriodMultiplier", &pct); err != nil {
		return 0, NewCollaboratorError("MeritManager", "boostPeriodMultiplier", err)
	}
	return pct.Int64(), nil
}

func (m *EthMeritManager) isRegistered(ctx context.Context, totem common.Address) (bool, error) {
	calldata, err := m.parsed.Pack("isRegistered", totem)
	if err != nil {
		return false, err
	}
	raw, err := m.client.CallContract(ctx, ethereum.CallMsg{To: &m.contract, Data: calldata}, nil)
	if err != nil {
		return false, err
	}
	out, err := m.parsed.Unpack("isRegistered", raw)
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (m *EthMeritManager) callView(ctx context.Context, method string, result interface{}) error {
	calldata, err := m.parsed.Pack(method)
	if err != nil {
		return err
	}
	raw, err := m.client.CallContract(ctx, ethereum.CallMsg{To: &m.contract, Data: calldata}, nil)
	if err != nil {
		return err
	}
	return m.parsed.UnpackIntoInterface(result, method, raw)
}

// EthTreasury forwards premium payments to the treasury address
type EthTreasury struct {
	sender   *txSender
	treasury common.Address
}

// NewEthTreasury creates an ethclient-backed treasury forwarder
func NewEthTreasury(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, treasury common.Address) (*EthTreasury, error) {
	sender, err := newTxSender(ctx, client, key)
	if err != nil {
		return nil, err
	}
	return &EthTreasury{sender: sender, treasury: treasury}, nil
}

// Receive forwards the given amount of native value to the treasury
func (t *EthTreasury) Receive(ctx context.Context, amount *big.Int) error {
	if err := t.sender.send(ctx, t.treasury, amount, nil); err != nil {
		return NewCollaboratorError("Treasury", "receive", err)
	}
	return nil
}

// EthBadgeMinter mints badge NFTs on the configured collection contract
type EthBadgeMinter struct {
	sender   *txSender
	contract common.Address
	parsed   abi.ABI
}

// NewEthBadgeMinter creates an ethclient-backed badge minter
func NewEthBadgeMinter(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, contract common.Address) (*EthBadgeMinter, error) {
	parsed, err := abi.JSON(strings.NewReader(badgeNFTABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse badge NFT ABI: %w", err)
	}
	sender, err := newTxSender(ctx, client, key)
	if err != nil {
		return nil, err
	}
	return &EthBadgeMinter{sender: sender, contract: contract, parsed: parsed}, nil
}

// SetContract repoints the minter at a new badge collection
func (b *EthBadgeMinter) SetContract(contract common.Address) {
	b.contract = contract
}

// Mint mints one badge NFT for a reached milestone
func (b *EthBadgeMinter) Mint(ctx context.Context, user common.Address, milestone types.Milestone) error {
	calldata, err := b.parsed.Pack("mint", user, big.NewInt(int64(milestone)))
	if err != nil {
		return NewCollaboratorError("BadgeNFT", "mint", err)
	}
	if err := b.sender.send(ctx, b.contract, nil, calldata); err != nil {
		return NewCollaboratorError("BadgeNFT", "mint", err)
	}
	return nil
}

// EthHoldingChecker checks ERC-20/ERC-721 balances on totem contracts.
// Both standards expose balanceOf(address), so one call covers both.
type EthHoldingChecker struct {
	client    *ethclient.Client
	parsed    abi.ABI
	threshold *big.Int
}

// NewEthHoldingChecker creates a holding checker with the given minimum balance
func NewEthHoldingChecker(client *ethclient.Client, threshold *big.Int) (*EthHoldingChecker, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	if threshold == nil {
		threshold = big.NewInt(1)
	}
	return &EthHoldingChecker{client: client, parsed: parsed, threshold: threshold}, nil
}

// HasMinimumHolding reports whether balanceOf(user) on the totem
// contract meets the threshold.
func (h *EthHoldingChecker) HasMinimumHolding(ctx context.Context, user, totem common.Address) (bool, error) {
	calldata, err := h.parsed.Pack("balanceOf", user)
	if err != nil {
		return false, NewCollaboratorError("Totem", "balanceOf", err)
	}
	raw, err := h.client.CallContract(ctx, ethereum.CallMsg{To: &totem, Data: calldata}, nil)
	if err != nil {
		return false, NewCollaboratorError("Totem", "balanceOf", err)
	}
	out, err := h.parsed.Unpack("balanceOf", raw)
	if err != nil {
		return false, NewCollaboratorError("Totem", "balanceOf", err)
	}
	balance := out[0].(*big.Int)
	return balance.Cmp(h.threshold) >= 0, nil
}
