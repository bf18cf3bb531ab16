// Package usecase implements key lifecycle management: per-owner secret key versions and
// per-user keypairs.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// SecretKeyRepository persists sealed secret keys.
//
// Implementations must enforce uniqueness of (owner_id, version) and report a duplicate as
// cryptoDomain.ErrKeyVersionConflict. Keys returned never carry plaintext material.
type SecretKeyRepository interface {
	// Create inserts a sealed key.
	Create(ctx context.Context, key *cryptoDomain.SecretKey) error

	// GetCurrent returns the highest version for owner, or ErrSecretKeyNotFound.
	GetCurrent(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error)

	// Get returns an exact version, or ErrSecretKeyNotFound.
	Get(ctx context.Context, ownerID string, version uint64) (*cryptoDomain.SecretKey, error)

	// DeleteBelow removes every version lower than version and returns how many were removed.
	DeleteBelow(ctx context.Context, ownerID string, version uint64) (int64, error)
}

// KeyPairRepository persists keypairs with sealed private halves.
type KeyPairRepository interface {
	// Create inserts a keypair, or returns ErrKeyPairAlreadyExists.
	Create(ctx context.Context, kp *cryptoDomain.KeyPair) error

	// Get returns the sealed keypair for address, or ErrKeyPairNotFound.
	Get(ctx context.Context, address string) (*cryptoDomain.KeyPair, error)
}

// ProofVerifier checks an identity proof before private key material is released.
type ProofVerifier interface {
	Verify(ctx context.Context, proof identityDomain.Proof) error
}

// SecretKeyManager owns the current symmetric content key of every owner.
//
// Versions are monotonic: no version is skipped and (owner, version) never maps to two
// different keys.
type SecretKeyManager interface {
	// Current returns the owner's current key, creating version 1 on first use.
	Current(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error)

	// CurrentVersion returns the owner's current version without unsealing it, or
	// ErrSecretKeyNotFound when the owner has no key yet.
	CurrentVersion(ctx context.Context, ownerID string) (uint64, error)

	// Get returns a retained version for decrypting older content.
	Get(ctx context.Context, ownerID string, version uint64) (*cryptoDomain.SecretKey, error)

	// Next prepares version current+1 with fresh material without persisting it.
	Next(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error)

	// Store persists key as the new current version. It is a compare-and-swap on
	// (owner, key.Version-1): if the current version moved, ErrKeyVersionConflict.
	Store(ctx context.Context, key *cryptoDomain.SecretKey) error

	// Rotate is Next followed by Store.
	Rotate(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error)

	// Prune discards versions lower than keepFrom.
	Prune(ctx context.Context, ownerID string, keepFrom uint64) (int64, error)
}

// KeyPairStore owns users' asymmetric keypairs.
type KeyPairStore interface {
	// Generate creates and persists a keypair for address. It is called once at registration.
	Generate(ctx context.Context, address string) (cryptoDomain.PublicKeys, error)

	// PublicKeys returns the published half.
	PublicKeys(ctx context.Context, address string) (cryptoDomain.PublicKeys, error)

	// Retrieve verifies proof and returns the keypair with private halves in clear.
	// Any failure is reported as ErrKeyRetrieval. Callers must Close the result.
	Retrieve(ctx context.Context, proof identityDomain.Proof) (*cryptoDomain.KeyPair, error)
}
