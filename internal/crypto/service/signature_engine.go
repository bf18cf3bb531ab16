package service

import (
	"crypto/ed25519"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// Ed25519SignatureEngine implements SignatureEngine with Ed25519 over the raw digest.
type Ed25519SignatureEngine struct{}

// NewSignatureEngine creates an Ed25519SignatureEngine.
func NewSignatureEngine() *Ed25519SignatureEngine {
	return &Ed25519SignatureEngine{}
}

// Sign signs digest. A missing or malformed private key is a key retrieval failure.
func (s *Ed25519SignatureEngine) Sign(
	privateKey ed25519.PrivateKey,
	digest cryptoDomain.Digest,
) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, cryptoDomain.ErrKeyRetrieval
	}
	return ed25519.Sign(privateKey, digest[:]), nil
}

// Verify checks signature over digest.
func (s *Ed25519SignatureEngine) Verify(
	publicKey ed25519.PublicKey,
	digest cryptoDomain.Digest,
	signature []byte,
) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, digest[:], signature)
}
