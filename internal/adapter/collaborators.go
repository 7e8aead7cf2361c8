// Package adapter defines the engine's external collaborators and their
// Ethereum-backed implementations: the merit ledger, the treasury, the
// badge NFT contract, totem holding checks, and the randomness oracle.
package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// MeritManager is the external merit accounting ledger
type MeritManager interface {
	// CreditMerit credits merit points to a totem's ledger on behalf of
	// a user. Fails if the totem is not registered with the ledger.
	CreditMerit(ctx context.Context, user, totem common.Address, amount int64) error

	// IsBoostPeriod reports whether a boost period (Mythum) is active.
	IsBoostPeriod(ctx context.Context) (bool, error)

	// BoostPeriodMultiplierPct returns the active period multiplier in
	// whole percent. Only meaningful while IsBoostPeriod is true.
	BoostPeriodMultiplierPct(ctx context.Context) (int64, error)
}

// Treasury receives premium boost payments
type Treasury interface {
	Receive(ctx context.Context, amount *big.Int) error
}

// BadgeMinter mints milestone badge NFTs
type BadgeMinter interface {
	Mint(ctx context.Context, user common.Address, milestone types.Milestone) error
}

// HoldingChecker answers whether a user holds enough of a totem's token
// or NFT collection to boost it.
type HoldingChecker interface {
	// HasMinimumHolding reports whether the user's fungible balance or
	// NFT count on the totem contract meets the configured threshold.
	HasMinimumHolding(ctx context.Context, user, totem common.Address) (bool, error)
}

// RandomnessOracle is the two-phase randomness source for premium
// boosts. Request returns immediately with a correlation id; the word
// arrives later through Fulfillments polling or the fulfillment
// callback endpoint.
type RandomnessOracle interface {
	// Request asks the oracle for one random word and returns the
	// request id the fulfillment will carry.
	Request(ctx context.Context) (string, error)

	// Fulfillments returns the random words available for the given
	// request ids. Requests the oracle has not answered yet are simply
	// absent from the result.
	Fulfillments(ctx context.Context, requestIDs []string) (map[string]uint64, error)
}

// Common collaborator errors

// ErrTotemNotRegistered indicates the merit ledger does not know the totem
var ErrTotemNotRegistered = &types.ServiceError{
	Code:    types.CodeTotemNotRegistered,
	Message: "totem is not registered with the merit ledger",
}

// CollaboratorError wraps a failure from an external collaborator call
type CollaboratorError struct {
	Collaborator string
	Operation    string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s.%s failed: %v", e.Collaborator, e.Operation, e.Cause)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// NewCollaboratorError wraps an external call failure with its origin
func NewCollaboratorError(collaborator, operation string, cause error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Operation: operation, Cause: cause}
}
