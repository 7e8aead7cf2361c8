// Package auth authenticates boost requests. A trusted frontend signer
// signs (user, totem, timestamp) tuples; the verifier recovers the
// signer from the secp256k1 signature, enforces a freshness window, and
// rejects replays via a consumed-signature store.
package auth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/boost-engine/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultTolerance is the accepted clock skew between the signed
// timestamp and the engine clock.
const DefaultTolerance = 5 * time.Minute

// ConsumedSignatureStore tracks signatures that already authorized a
// boost. Entries only need to live as long as the freshness window:
// anything older is rejected as expired before the store is consulted.
type ConsumedSignatureStore interface {
	// Consume marks the digest as used, expiring it after ttl.
	// It returns false if the digest was already consumed.
	Consume(ctx context.Context, digest common.Hash, ttl time.Duration) (bool, error)

	// Release removes a consumed digest so the signature can be retried.
	// Used when the boost the signature authorized fails after the
	// consume step.
	Release(ctx context.Context, digest common.Hash) error
}

// Verifier authenticates signed boost requests
type Verifier struct {
	consumed  ConsumedSignatureStore
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier backed by the given consumed-signature store
func NewVerifier(consumed ConsumedSignatureStore, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		consumed:  consumed,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// SetClock overrides the verifier clock, for tests
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}

// Tolerance returns the configured freshness window
func (v *Verifier) Tolerance() time.Duration {
	return v.tolerance
}

// BoostMessageHash computes the digest the frontend signs: the
// prefixed hash of keccak256(user || totem || uint256(timestamp)),
// following the personal_sign convention
// sign(keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)).
func BoostMessageHash(user, totem common.Address, timestamp int64) common.Hash {
	packed := make([]byte, 0, 72)
	packed = append(packed, user.Bytes()...)
	packed = append(packed, totem.Bytes()...)
	packed = append(packed, common.LeftPadBytes(new(big.Int).SetInt64(timestamp).Bytes(), 32)...)

	inner := crypto.Keccak256(packed)
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(inner))
	return crypto.Keccak256Hash(append([]byte(prefixed), inner...))
}

// SignatureDigest is the key a signature is tracked under in the
// consumed-signature store.
func SignatureDigest(signature []byte) common.Hash {
	return crypto.Keccak256Hash(signature)
}

// Verify authenticates one boost request against the expected signer.
// On success the signature is marked consumed; a failed boost should
// call Release afterwards so the signature stays usable.
func (v *Verifier) Verify(ctx context.Context, signer, user, totem common.Address, timestamp int64, signature []byte) error {
	now := v.now()
	signedAt := time.Unix(timestamp, 0)
	drift := now.Sub(signedAt)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.tolerance {
		return &types.ServiceError{
			Code:    types.CodeSignatureExpired,
			Message: fmt.Sprintf("signature timestamp outside the ±%s tolerance window", v.tolerance),
			Details: map[string]interface{}{
				"timestamp": timestamp,
			},
		}
	}

	recovered, err := recoverSigner(BoostMessageHash(user, totem, timestamp), signature)
	if err != nil || recovered != signer {
		return &types.ServiceError{
			Code:    types.CodeInvalidSignature,
			Message: "signature does not match the configured frontend signer",
		}
	}

	ok, err := v.consumed.Consume(ctx, SignatureDigest(signature), 2*v.tolerance)
	if err != nil {
		return fmt.Errorf("failed to record consumed signature: %w", err)
	}
	if !ok {
		return &types.ServiceError{
			Code:    types.CodeSignatureAlreadyUsed,
			Message: "signature has already been used",
		}
	}

	return nil
}

// Release frees a consumed signature after a failed boost
func (v *Verifier) Release(ctx context.Context, signature []byte) error {
	return v.consumed.Release(ctx, SignatureDigest(signature))
}

// recoverSigner recovers the signing address from a 65-byte
// [R || S || V] signature over the given digest.
func recoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)

	// Ledger-produced signatures have v = 0 or 1; geth expects 0/1.
	if sig[64] == 27 || sig[64] == 28 {
		sig[64] -= 27
	}
	if sig[64] != 0 && sig[64] != 1 {
		return common.Address{}, fmt.Errorf("invalid signature recovery id %d", sig[64])
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
