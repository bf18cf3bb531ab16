package domain

import (
	"bytes"
	"time"
)

// SecretKey is an owner's symmetric content key at a given version (epoch).
//
// Exactly one version per owner is current. Older versions are kept only while documents
// encrypted under them may still be read, then pruned. Material is plaintext and lives in
// memory only; EncryptedMaterial is what the ledger stores, sealed by the master key
// identified by MasterKeyID.
type SecretKey struct {
	OwnerID           string
	Version           uint64
	Algorithm         Algorithm
	Material          []byte
	EncryptedMaterial []byte
	MasterKeyID       string
	Nonce             []byte
	CreatedAt         time.Time
}

// Close zeroes the plaintext material.
func (k *SecretKey) Close() {
	if k == nil {
		return
	}
	Zero(k.Material)
	k.Material = nil
}

// Equal reports whether both keys are the same epoch with identical material.
func (k *SecretKey) Equal(other *SecretKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.OwnerID == other.OwnerID &&
		k.Version == other.Version &&
		k.Algorithm == other.Algorithm &&
		bytes.Equal(k.Material, other.Material)
}

// Sealed returns a copy without plaintext material, suitable for persistence.
func (k *SecretKey) Sealed() *SecretKey {
	return &SecretKey{
		OwnerID:           k.OwnerID,
		Version:           k.Version,
		Algorithm:         k.Algorithm,
		EncryptedMaterial: bytes.Clone(k.EncryptedMaterial),
		MasterKeyID:       k.MasterKeyID,
		Nonce:             bytes.Clone(k.Nonce),
		CreatedAt:         k.CreatedAt,
	}
}
