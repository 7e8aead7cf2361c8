package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// BoostRecordRepository handles boost record persistence. Addresses are
// stored lowercased; records are created lazily and never deleted.
type BoostRecordRepository struct {
	db *PostgresDB
}

// NewBoostRecordRepository creates a new boost record repository
func NewBoostRecordRepository(db *PostgresDB) *BoostRecordRepository {
	return &BoostRecordRepository{db: db}
}

const boostRecordColumns = `
	user_address, totem_address,
	last_free_boost_at, last_premium_boost_at, streak_anchor_at,
	streak_length, grace_days_earned, grace_days_used,
	unminted_badges, created_at, updated_at
`

// Get retrieves the record for a (user, totem) pair, or nil if the
// pair has never boosted.
func (r *BoostRecordRepository) Get(ctx context.Context, user, totem common.Address) (*models.BoostRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM boost_records
		WHERE user_address = $1 AND totem_address = $2
	`, boostRecordColumns)

	rec, err := scanBoostRecord(r.db.Pool().QueryRow(ctx, query, addrKey(user), addrKey(totem)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get boost record: %w", err)
	}
	return rec, nil
}

// ListByUser returns all of a user's records ordered by totem address
func (r *BoostRecordRepository) ListByUser(ctx context.Context, user common.Address) ([]*models.BoostRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM boost_records
		WHERE user_address = $1
		ORDER BY totem_address
	`, boostRecordColumns)

	rows, err := r.db.Pool().Query(ctx, query, addrKey(user))
	if err != nil {
		return nil, fmt.Errorf("failed to list boost records: %w", err)
	}
	defer rows.Close()

	var records []*models.BoostRecord
	for rows.Next() {
		rec, err := scanBoostRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan boost record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Mutate loads the record for the pair under a row lock, applies fn,
// and persists the result. A failed fn aborts the transaction so no
// partial state survives. The record passed to fn is freshly created
// if the pair has never boosted.
func (r *BoostRecordRepository) Mutate(ctx context.Context, user, totem common.Address, fn func(*models.BoostRecord) error) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`
			SELECT %s FROM boost_records
			WHERE user_address = $1 AND totem_address = $2
			FOR UPDATE
		`, boostRecordColumns)

		rec, err := scanBoostRecord(tx.QueryRow(ctx, query, addrKey(user), addrKey(totem)))
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to lock boost record: %w", err)
			}
			rec = models.NewBoostRecord(user, totem)
			rec.CreatedAt = time.Now().UTC()
		}

		if err := fn(rec); err != nil {
			return err
		}

		rec.UpdatedAt = time.Now().UTC()
		badgesJSON, err := json.Marshal(rec.UnmintedBadges)
		if err != nil {
			return fmt.Errorf("failed to marshal unminted badges: %w", err)
		}

		upsert := `
			INSERT INTO boost_records (
				user_address, totem_address,
				last_free_boost_at, last_premium_boost_at, streak_anchor_at,
				streak_length, grace_days_earned, grace_days_used,
				unminted_badges, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_address, totem_address) DO UPDATE SET
				last_free_boost_at = EXCLUDED.last_free_boost_at,
				last_premium_boost_at = EXCLUDED.last_premium_boost_at,
				streak_anchor_at = EXCLUDED.streak_anchor_at,
				streak_length = EXCLUDED.streak_length,
				grace_days_earned = EXCLUDED.grace_days_earned,
				grace_days_used = EXCLUDED.grace_days_used,
				unminted_badges = EXCLUDED.unminted_badges,
				updated_at = EXCLUDED.updated_at
		`

		_, err = tx.Exec(ctx, upsert,
			addrKey(rec.User),
			addrKey(rec.Totem),
			nullableTime(rec.LastFreeBoostAt),
			nullableTime(rec.LastPremiumBoostAt),
			nullableTime(rec.StreakAnchorAt),
			rec.StreakLength,
			rec.GraceDaysEarned,
			rec.GraceDaysUsed,
			badgesJSON,
			rec.CreatedAt,
			rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert boost record: %w", err)
		}
		return nil
	})
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBoostRecord(row rowScanner) (*models.BoostRecord, error) {
	var (
		rec         models.BoostRecord
		userHex     string
		totemHex    string
		lastFree    *time.Time
		lastPremium *time.Time
		anchor      *time.Time
		badgesJSON  []byte
	)

	err := row.Scan(
		&userHex,
		&totemHex,
		&lastFree,
		&lastPremium,
		&anchor,
		&rec.StreakLength,
		&rec.GraceDaysEarned,
		&rec.GraceDaysUsed,
		&badgesJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.User = common.HexToAddress(userHex)
	rec.Totem = common.HexToAddress(totemHex)
	rec.LastFreeBoostAt = derefTime(lastFree)
	rec.LastPremiumBoostAt = derefTime(lastPremium)
	rec.StreakAnchorAt = derefTime(anchor)

	rec.UnmintedBadges = make(map[types.Milestone]int)
	if len(badgesJSON) > 0 {
		if err := json.Unmarshal(badgesJSON, &rec.UnmintedBadges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal unminted badges: %w", err)
		}
	}

	return &rec, nil
}

// addrKey normalizes an address into its storage key form
func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
