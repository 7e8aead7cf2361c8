// Package types provides common type definitions for the boost engine.
package types

// BoostKind distinguishes the two boost flavors
type BoostKind string

const (
	// BoostFree represents the cooldown-gated free boost
	BoostFree BoostKind = "free"
	// BoostPremium represents the paid, randomness-resolved boost
	BoostPremium BoostKind = "premium"
)

// Milestone represents a streak-length threshold that unlocks a badge mint
type Milestone int

// Milestones lists the streak lengths that unlock one badge mint each,
// in ascending order. Milestones are re-achievable after a streak reset.
var Milestones = []Milestone{7, 14, 30, 60, 100, 180, 365}

// IsMilestone reports whether the given streak length is a badge milestone
func IsMilestone(streakLength int) bool {
	for _, m := range Milestones {
		if int(m) == streakLength {
			return true
		}
	}
	return false
}

// Common service error codes
const (
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeSignatureExpired     = "SIGNATURE_EXPIRED"
	CodeSignatureAlreadyUsed = "SIGNATURE_ALREADY_USED"
	CodeNotEnoughTokens      = "NOT_ENOUGH_TOKENS"
	CodeNotEnoughTimePassed  = "NOT_ENOUGH_TIME_PASSED"
	CodeInsufficientPayment  = "INSUFFICIENT_PAYMENT"
	CodeMilestoneNotAchieved = "MILESTONE_NOT_ACHIEVED"
	CodeSystemPaused         = "SYSTEM_PAUSED"
	CodeTotemNotRegistered   = "TOTEM_NOT_REGISTERED"
	CodeRequestNotFound      = "REQUEST_NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidRequest       = "INVALID_REQUEST"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
