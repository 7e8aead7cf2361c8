package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingPremiumRequest correlates an in-flight randomness request with
// the (user, totem) pair and streak snapshot it was issued for. The row
// is deleted once the oracle fulfills the request. There is no timeout:
// a request the oracle never answers stays pending indefinitely.
type PendingPremiumRequest struct {
	RequestID string         `json:"requestId"`
	User      common.Address `json:"user"`
	Totem     common.Address `json:"totem"`
	Snapshot  StreakSnapshot `json:"snapshot"`
	CreatedAt time.Time      `json:"createdAt"`
}
