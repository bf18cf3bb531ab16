package domain

import (
	"crypto/ed25519"
	"time"
)

// PublicKeys is the published half of a user's keypair.
type PublicKeys struct {
	Address string
	// BoxPublicKey receives wrapped secret keys.
	BoxPublicKey [32]byte
	// SigningPublicKey verifies document signatures.
	SigningPublicKey ed25519.PublicKey
}

// KeyPair is a user's asymmetric key material, generated once at registration.
//
// It carries two keys: an X25519 key for receiving wrapped secret keys and an Ed25519 key
// for signing document digests. The private halves are sealed at rest with the master key
// and only produced in clear inside an authenticated session.
type KeyPair struct {
	Address           string
	BoxPublicKey      [32]byte
	BoxPrivateKey     [32]byte
	SigningPublicKey  ed25519.PublicKey
	SigningPrivateKey ed25519.PrivateKey

	Algorithm            Algorithm
	EncryptedPrivateKeys []byte
	MasterKeyID          string
	Nonce                []byte
	CreatedAt            time.Time
}

// Public returns the publishable half.
func (k *KeyPair) Public() PublicKeys {
	return PublicKeys{
		Address:          k.Address,
		BoxPublicKey:     k.BoxPublicKey,
		SigningPublicKey: k.SigningPublicKey,
	}
}

// HasPrivateKeys reports whether the private halves are present in clear.
func (k *KeyPair) HasPrivateKeys() bool {
	return len(k.SigningPrivateKey) == ed25519.PrivateKeySize && k.BoxPrivateKey != [32]byte{}
}

// Close zeroes the private halves.
func (k *KeyPair) Close() {
	if k == nil {
		return
	}
	ZeroArray(&k.BoxPrivateKey)
	Zero(k.SigningPrivateKey)
	k.SigningPrivateKey = nil
}

// PrivateKeysSize is the length of the serialized private halves: box key || ed25519 seed.
const PrivateKeysSize = 32 + ed25519.SeedSize

// MarshalPrivateKeys serializes the private halves for sealing.
func (k *KeyPair) MarshalPrivateKeys() []byte {
	out := make([]byte, 0, PrivateKeysSize)
	out = append(out, k.BoxPrivateKey[:]...)
	return append(out, k.SigningPrivateKey.Seed()...)
}

// UnmarshalPrivateKeys restores the private halves and checks they match the public ones.
func (k *KeyPair) UnmarshalPrivateKeys(raw []byte) error {
	if len(raw) != PrivateKeysSize {
		return ErrDecryptionFailed
	}
	copy(k.BoxPrivateKey[:], raw[:32])
	k.SigningPrivateKey = ed25519.NewKeyFromSeed(raw[32:])

	pub, ok := k.SigningPrivateKey.Public().(ed25519.PublicKey)
	if !ok || !pub.Equal(k.SigningPublicKey) {
		k.Close()
		return ErrDecryptionFailed
	}
	return nil
}
