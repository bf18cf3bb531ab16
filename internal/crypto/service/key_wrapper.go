package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// version(8) | algorithm(1) | material(32) | ownerID
const wrappedPayloadMinSize = 8 + 1 + cryptoDomain.KeySize

// SealedBoxKeyWrapper implements KeyWrapper with NaCl anonymous sealed boxes
// (X25519 + XSalsa20-Poly1305). The sender is ephemeral, so wrapping only needs the
// grantee's public key and holds no state between calls.
type SealedBoxKeyWrapper struct{}

// NewKeyWrapper creates a SealedBoxKeyWrapper.
func NewKeyWrapper() *SealedBoxKeyWrapper {
	return &SealedBoxKeyWrapper{}
}

// Wrap seals key for the holder of granteePublicKey.
func (w *SealedBoxKeyWrapper) Wrap(
	key *cryptoDomain.SecretKey,
	granteePublicKey *[32]byte,
) (cryptoDomain.WrappedKey, error) {
	if granteePublicKey == nil || *granteePublicKey == [32]byte{} {
		return nil, cryptoDomain.ErrInvalidPublicKey
	}
	if len(key.Material) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	code, ok := key.Algorithm.Code()
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	payload := make([]byte, 0, wrappedPayloadMinSize+len(key.OwnerID))
	payload = binary.BigEndian.AppendUint64(payload, key.Version)
	payload = append(payload, code)
	payload = append(payload, key.Material...)
	payload = append(payload, key.OwnerID...)
	defer cryptoDomain.Zero(payload)

	sealed, err := box.SealAnonymous(nil, payload, granteePublicKey, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap secret key: %w", err)
	}
	return sealed, nil
}

// Unwrap opens wrapped with the grantee's keys. Any failure is ErrUnwrapFailed.
func (w *SealedBoxKeyWrapper) Unwrap(
	wrapped cryptoDomain.WrappedKey,
	granteePublicKey, granteePrivateKey *[32]byte,
) (*cryptoDomain.SecretKey, error) {
	if granteePublicKey == nil || granteePrivateKey == nil {
		return nil, cryptoDomain.ErrUnwrapFailed
	}

	payload, ok := box.OpenAnonymous(nil, wrapped, granteePublicKey, granteePrivateKey)
	if !ok || len(payload) < wrappedPayloadMinSize {
		return nil, cryptoDomain.ErrUnwrapFailed
	}
	defer cryptoDomain.Zero(payload)

	alg, ok := cryptoDomain.AlgorithmFromCode(payload[8])
	if !ok {
		return nil, cryptoDomain.ErrUnwrapFailed
	}

	material := make([]byte, cryptoDomain.KeySize)
	copy(material, payload[9:9+cryptoDomain.KeySize])

	return &cryptoDomain.SecretKey{
		OwnerID:   string(payload[wrappedPayloadMinSize:]),
		Version:   binary.BigEndian.Uint64(payload[:8]),
		Algorithm: alg,
		Material:  material,
	}, nil
}
