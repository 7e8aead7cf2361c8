package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// SettingsRepository persists the single row of manager-tunable engine
// parameters.
type SettingsRepository struct {
	db *PostgresDB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *PostgresDB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the current settings, falling back to defaults when no
// row has been written yet.
func (r *SettingsRepository) Get(ctx context.Context) (*models.EngineSettings, error) {
	query := `
		SELECT boost_reward_points, premium_boost_price, free_boost_cooldown_seconds,
		       frontend_signer, badge_nft, paused, updated_at
		FROM engine_settings
		WHERE id = 1
	`

	var (
		s               models.EngineSettings
		priceStr        string
		cooldownSeconds int64
		signerHex       string
		badgeHex        string
	)

	err := r.db.Pool().QueryRow(ctx, query).Scan(
		&s.BoostRewardPoints,
		&priceStr,
		&cooldownSeconds,
		&signerHex,
		&badgeHex,
		&s.Paused,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultEngineSettings(), nil
		}
		return nil, fmt.Errorf("failed to get engine settings: %w", err)
	}

	price, ok := new(big.Int).SetString(priceStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid premium boost price in settings: %q", priceStr)
	}
	s.PremiumBoostPrice = price
	s.FreeBoostCooldown = time.Duration(cooldownSeconds) * time.Second
	s.FrontendSigner = common.HexToAddress(signerHex)
	s.BadgeNFT = common.HexToAddress(badgeHex)

	return &s, nil
}

// Update writes the settings row
func (r *SettingsRepository) Update(ctx context.Context, s *models.EngineSettings) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO engine_settings (
			id, boost_reward_points, premium_boost_price, free_boost_cooldown_seconds,
			frontend_signer, badge_nft, paused, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			boost_reward_points = EXCLUDED.boost_reward_points,
			premium_boost_price = EXCLUDED.premium_boost_price,
			free_boost_cooldown_seconds = EXCLUDED.free_boost_cooldown_seconds,
			frontend_signer = EXCLUDED.frontend_signer,
			badge_nft = EXCLUDED.badge_nft,
			paused = EXCLUDED.paused,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		s.BoostRewardPoints,
		s.PremiumBoostPrice.String(),
		int64(s.FreeBoostCooldown/time.Second),
		strings.ToLower(s.FrontendSigner.Hex()),
		strings.ToLower(s.BadgeNFT.Hex()),
		s.Paused,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update engine settings: %w", err)
	}
	return nil
}
