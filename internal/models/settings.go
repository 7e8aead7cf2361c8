package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EngineSettings holds the manager-tunable engine parameters. A single
// row backs these in storage; defaults apply until the manager overrides
// them.
type EngineSettings struct {
	// BoostRewardPoints is the base merit credited per free boost
	// before the streak multiplier.
	BoostRewardPoints int64 `json:"boostRewardPoints"`

	// PremiumBoostPrice is the payment required for a premium boost, in wei.
	PremiumBoostPrice *big.Int `json:"premiumBoostPrice"`

	// FreeBoostCooldown is the minimum spacing between streak-advancing
	// free boosts.
	FreeBoostCooldown time.Duration `json:"freeBoostCooldown"`

	// FrontendSigner is the address whose signatures authorize boosts.
	FrontendSigner common.Address `json:"frontendSigner"`

	// BadgeNFT is the badge collection contract badges are minted against.
	BadgeNFT common.Address `json:"badgeNFT"`

	// Paused blocks all mutating entry points while true. Reads stay
	// available.
	Paused bool `json:"paused"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Default engine parameters
const (
	DefaultBoostRewardPoints = int64(100)
	DefaultFreeBoostCooldown = 24 * time.Hour
)

// DefaultPremiumBoostPrice returns the default premium boost price in wei (0.01 ether)
func DefaultPremiumBoostPrice() *big.Int {
	return new(big.Int).Mul(big.NewInt(10_000_000), big.NewInt(1_000_000_000))
}

// DefaultEngineSettings returns settings with all defaults applied
func DefaultEngineSettings() *EngineSettings {
	return &EngineSettings{
		BoostRewardPoints: DefaultBoostRewardPoints,
		PremiumBoostPrice: DefaultPremiumBoostPrice(),
		FreeBoostCooldown: DefaultFreeBoostCooldown,
	}
}
