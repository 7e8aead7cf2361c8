package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boost-engine/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// PendingRequestRepository persists in-flight premium randomness
// requests. Rows are deleted on fulfillment and otherwise live forever.
type PendingRequestRepository struct {
	db *PostgresDB
}

// NewPendingRequestRepository creates a new pending request repository
func NewPendingRequestRepository(db *PostgresDB) *PendingRequestRepository {
	return &PendingRequestRepository{db: db}
}

// Create stores a new pending request
func (r *PendingRequestRepository) Create(ctx context.Context, req *models.PendingPremiumRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO pending_premium_requests (
			request_id, user_address, totem_address,
			snapshot_streak_length, snapshot_taken_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		req.RequestID,
		addrKey(req.User),
		addrKey(req.Totem),
		req.Snapshot.StreakLength,
		req.Snapshot.TakenAt,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pending request: %w", err)
	}
	return nil
}

// Get retrieves a pending request by id, or nil if unknown
func (r *PendingRequestRepository) Get(ctx context.Context, requestID string) (*models.PendingPremiumRequest, error) {
	query := `
		SELECT request_id, user_address, totem_address,
		       snapshot_streak_length, snapshot_taken_at, created_at
		FROM pending_premium_requests
		WHERE request_id = $1
	`

	req, err := scanPendingRequest(r.db.Pool().QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending request: %w", err)
	}
	return req, nil
}

// Delete removes a fulfilled request. It reports whether a row was
// actually deleted, so concurrent fulfillments resolve to exactly one
// credit.
func (r *PendingRequestRepository) Delete(ctx context.Context, requestID string) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM pending_premium_requests WHERE request_id = $1`, requestID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListIDs returns all pending request ids, oldest first
func (r *PendingRequestRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT request_id FROM pending_premium_requests ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending request id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOlderThan returns requests pending since before the cutoff.
// Used only for visibility: stale requests are logged, never cancelled.
func (r *PendingRequestRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PendingPremiumRequest, error) {
	query := `
		SELECT request_id, user_address, totem_address,
		       snapshot_streak_length, snapshot_taken_at, created_at
		FROM pending_premium_requests
		WHERE created_at < $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending requests: %w", err)
	}
	defer rows.Close()

	var out []*models.PendingPremiumRequest
	for rows.Next() {
		req, err := scanPendingRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanPendingRequest(row rowScanner) (*models.PendingPremiumRequest, error) {
	var (
		req      models.PendingPremiumRequest
		userHex  string
		totemHex string
	)

	err := row.Scan(
		&req.RequestID,
		&userHex,
		&totemHex,
		&req.Snapshot.StreakLength,
		&req.Snapshot.TakenAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.User = common.HexToAddress(userHex)
	req.Totem = common.HexToAddress(totemHex)
	return &req, nil
}
