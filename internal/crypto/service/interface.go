// Package service provides the cryptographic building blocks of the envelope scheme:
// AEAD ciphers, the document CipherEngine, Ed25519 signatures, X25519 key wrapping and
// master-key sealing of keys at rest.
package service

import (
	"crypto/ed25519"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// CipherEngine encrypts document bytes under an owner's secret key.
type CipherEngine interface {
	// Encrypt returns a self-describing ciphertext bound to key's version.
	Encrypt(key *cryptoDomain.SecretKey, plaintext []byte) ([]byte, error)

	// Decrypt returns ErrDecryptionFailed for a wrong key, a version mismatch or
	// malformed input. It never returns partial plaintext.
	Decrypt(key *cryptoDomain.SecretKey, ciphertext []byte) ([]byte, error)
}

// SignatureEngine signs and verifies document digests.
type SignatureEngine interface {
	Sign(privateKey ed25519.PrivateKey, digest cryptoDomain.Digest) ([]byte, error)

	// Verify is a pure predicate. Malformed keys or signatures yield false.
	Verify(publicKey ed25519.PublicKey, digest cryptoDomain.Digest, signature []byte) bool
}

// KeyWrapper seals a secret key to one grantee's public key.
type KeyWrapper interface {
	Wrap(key *cryptoDomain.SecretKey, granteePublicKey *[32]byte) (cryptoDomain.WrappedKey, error)
	Unwrap(
		wrapped cryptoDomain.WrappedKey,
		granteePublicKey, granteePrivateKey *[32]byte,
	) (*cryptoDomain.SecretKey, error)
}

// KeyManager generates keys and seals them at rest with a master key.
type KeyManager interface {
	// GenerateSecretKey creates fresh material for (ownerID, version) and seals it.
	GenerateSecretKey(
		ownerID string,
		version uint64,
		alg cryptoDomain.Algorithm,
		masterKey *cryptoDomain.MasterKey,
	) (*cryptoDomain.SecretKey, error)

	// UnsealSecretKey fills key.Material from key.EncryptedMaterial.
	UnsealSecretKey(key *cryptoDomain.SecretKey, masterKey *cryptoDomain.MasterKey) error

	// GenerateKeyPair creates a user's box and signing keys and seals the private halves.
	GenerateKeyPair(
		address string,
		alg cryptoDomain.Algorithm,
		masterKey *cryptoDomain.MasterKey,
	) (*cryptoDomain.KeyPair, error)

	// UnsealKeyPair fills the private halves of kp from kp.EncryptedPrivateKeys.
	UnsealKeyPair(kp *cryptoDomain.KeyPair, masterKey *cryptoDomain.MasterKey) error
}
