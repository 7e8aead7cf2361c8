// Package badge tracks milestone achievements and turns them into badge
// NFT mints.
package badge

import (
	"context"
	"fmt"

	"github.com/boost-engine/internal/models"
	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

// RecordStore is the slice of boost-record storage the ledger needs.
// ListByUser must return records in a stable order (ascending totem) so
// mints drain counters deterministically.
type RecordStore interface {
	ListByUser(ctx context.Context, user common.Address) ([]*models.BoostRecord, error)
	Mutate(ctx context.Context, user, totem common.Address, fn func(*models.BoostRecord) error) error
}

// Minter mints one badge NFT for a reached milestone
type Minter interface {
	Mint(ctx context.Context, user common.Address, milestone types.Milestone) error
}

// Ledger sums unminted badge counters across a user's boost records and
// spends them on mints.
type Ledger struct {
	records RecordStore
	minter  Minter
}

// NewLedger creates a badge ledger
func NewLedger(records RecordStore, minter Minter) *Ledger {
	return &Ledger{records: records, minter: minter}
}

// Available returns how many unminted badges the user holds for a
// milestone, across all totems.
func (l *Ledger) Available(ctx context.Context, user common.Address, milestone types.Milestone) (int, error) {
	recs, err := l.records.ListByUser(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("failed to list boost records: %w", err)
	}

	total := 0
	for _, rec := range recs {
		total += rec.UnmintedBadges[milestone]
	}
	return total, nil
}

// Mint spends one unminted badge for the milestone and mints the badge
// NFT. The counter decrement and the mint happen inside the record
// mutation so a failed mint leaves the counter untouched.
func (l *Ledger) Mint(ctx context.Context, user common.Address, milestone types.Milestone) error {
	recs, err := l.records.ListByUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to list boost records: %w", err)
	}

	for _, candidate := range recs {
		if candidate.UnmintedBadges[milestone] == 0 {
			continue
		}

		return l.records.Mutate(ctx, user, candidate.Totem, func(rec *models.BoostRecord) error {
			// Re-check under the record lock.
			if rec.UnmintedBadges[milestone] == 0 {
				return errMilestoneNotAchieved(milestone)
			}
			if err := l.minter.Mint(ctx, user, milestone); err != nil {
				return fmt.Errorf("failed to mint badge: %w", err)
			}
			rec.UnmintedBadges[milestone]--
			if rec.UnmintedBadges[milestone] == 0 {
				delete(rec.UnmintedBadges, milestone)
			}
			return nil
		})
	}

	return errMilestoneNotAchieved(milestone)
}

func errMilestoneNotAchieved(milestone types.Milestone) error {
	return &types.ServiceError{
		Code:    types.CodeMilestoneNotAchieved,
		Message: fmt.Sprintf("no unminted badge available for milestone %d", milestone),
		Details: map[string]interface{}{
			"milestone": int(milestone),
		},
	}
}
