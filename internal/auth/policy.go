package auth

import (
	"crypto/subtle"

	"github.com/boost-engine/internal/types"
)

// ManagerPolicy is the single capability gate for admin operations.
// The engine has exactly one manager role; any richer access control is
// out of scope.
type ManagerPolicy struct {
	key string
}

// NewManagerPolicy creates a policy checking against the configured manager key
func NewManagerPolicy(key string) *ManagerPolicy {
	return &ManagerPolicy{key: key}
}

// Authorize checks a presented key against the manager capability
func (p *ManagerPolicy) Authorize(presented string) error {
	if p.key == "" || subtle.ConstantTimeCompare([]byte(p.key), []byte(presented)) != 1 {
		return &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "manager authorization required",
		}
	}
	return nil
}
