// Package service verifies identity proofs.
package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// DefaultClockSkew is how far in the future a proof's IssuedAt may be.
const DefaultClockSkew = 30 * time.Second

// UserLookup resolves the identity key registered for an address.
type UserLookup interface {
	Get(ctx context.Context, address string) (*identityDomain.User, error)
}

// ProofVerifier checks wallet-style proofs: an Ed25519 signature by the user's registered
// identity key over identityDomain.ProofMessage, issued no longer than maxAge ago.
type ProofVerifier struct {
	users  UserLookup
	maxAge time.Duration
	skew   time.Duration
	now    func() time.Time
}

// NewProofVerifier creates a ProofVerifier.
func NewProofVerifier(users UserLookup, maxAge time.Duration) *ProofVerifier {
	return &ProofVerifier{
		users:  users,
		maxAge: maxAge,
		skew:   DefaultClockSkew,
		now:    time.Now,
	}
}

// Verify returns nil for a fresh, correctly signed proof. Unknown addresses and bad
// signatures are both reported as ErrInvalidProof.
func (v *ProofVerifier) Verify(ctx context.Context, proof identityDomain.Proof) error {
	now := v.now()
	if proof.IssuedAt.Before(now.Add(-v.maxAge)) || proof.IssuedAt.After(now.Add(v.skew)) {
		return identityDomain.ErrProofExpired
	}

	user, err := v.users.Get(ctx, proof.Address)
	if err != nil {
		if errors.Is(err, identityDomain.ErrUserNotFound) {
			return identityDomain.ErrInvalidProof
		}
		return err
	}

	if len(user.IdentityPublicKey) != ed25519.PublicKeySize || len(proof.Signature) != ed25519.SignatureSize {
		return identityDomain.ErrInvalidProof
	}
	if !ed25519.Verify(user.IdentityPublicKey, proof.Message(), proof.Signature) {
		return identityDomain.ErrInvalidProof
	}
	return nil
}

// SignProof produces a proof for address with the identity private key. It is what a wallet
// does client-side; the CLI and tests use it.
func SignProof(identityKey ed25519.PrivateKey, address string, issuedAt time.Time) identityDomain.Proof {
	return identityDomain.Proof{
		Address:   address,
		IssuedAt:  issuedAt,
		Signature: ed25519.Sign(identityKey, identityDomain.ProofMessage(address, issuedAt)),
	}
}

// SignRequestProof produces a proof for address bound to one HTTP method and path.
func SignRequestProof(
	identityKey ed25519.PrivateKey,
	address, method, path string,
	issuedAt time.Time,
) identityDomain.Proof {
	request := identityDomain.RequestScope(method, path)
	return identityDomain.Proof{
		Address:   address,
		IssuedAt:  issuedAt,
		Request:   request,
		Signature: ed25519.Sign(identityKey, identityDomain.RequestProofMessage(address, issuedAt, request)),
	}
}
