package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/boost-engine/internal/errors"
	"github.com/boost-engine/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BoostEventLog appends boost history rows to ClickHouse and serves
// aggregate queries over them. Writes are best-effort: the engine's
// source of truth is Postgres, the event log only feeds analytics.
type BoostEventLog struct {
	db *ClickHouseDB
}

// NewBoostEventLog creates a new boost event log
func NewBoostEventLog(db *ClickHouseDB) *BoostEventLog {
	return &BoostEventLog{db: db}
}

// Append writes one boost event
func (l *BoostEventLog) Append(ctx context.Context, event *models.BoostEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO boost_events (
			event_id, user_address, totem_address, kind,
			streak_length, reward, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err := l.db.Conn().Exec(ctx, query,
		event.EventID,
		addrKey(event.User),
		addrKey(event.Totem),
		string(event.Kind),
		int32(event.StreakLength),
		event.Reward,
		event.OccurredAt,
	)
	if err != nil {
		return errors.NewDatabaseError("append boost event", err)
	}
	return nil
}

// Leaderboard returns the totem's top boosters by total earned reward
func (l *BoostEventLog) Leaderboard(ctx context.Context, totem common.Address, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT user_address, sum(reward) AS total_reward, count() AS boost_count
		FROM boost_events
		WHERE totem_address = $1
		GROUP BY user_address
		ORDER BY total_reward DESC
		LIMIT $2
	`

	rows, err := l.db.Conn().Query(ctx, query, addrKey(totem), limit)
	if err != nil {
		return nil, errors.NewDatabaseError("query leaderboard", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var (
			userHex string
			total   int64
			count   uint64
		)
		if err := rows.Scan(&userHex, &total, &count); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, &models.LeaderboardEntry{
			User:        common.HexToAddress(userHex),
			TotalReward: total,
			BoostCount:  int64(count),
		})
	}
	return entries, rows.Err()
}
