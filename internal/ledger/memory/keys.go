package memory

import (
	"bytes"
	"context"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// KeyPairRepository stores sealed keypairs.
type KeyPairRepository struct {
	store *Store
}

func sealedKeyPair(kp cryptoDomain.KeyPair) *cryptoDomain.KeyPair {
	kp.BoxPrivateKey = [32]byte{}
	kp.SigningPrivateKey = nil
	kp.SigningPublicKey = bytes.Clone(kp.SigningPublicKey)
	kp.EncryptedPrivateKeys = bytes.Clone(kp.EncryptedPrivateKeys)
	kp.Nonce = bytes.Clone(kp.Nonce)
	return &kp
}

func (r *KeyPairRepository) Create(ctx context.Context, kp *cryptoDomain.KeyPair) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.keyPairs[kp.Address]; ok {
			return cryptoDomain.ErrKeyPairAlreadyExists
		}
		st.keyPairs[kp.Address] = *sealedKeyPair(*kp)
		return nil
	})
}

func (r *KeyPairRepository) Get(ctx context.Context, address string) (*cryptoDomain.KeyPair, error) {
	kp, ok := r.store.read(ctx).keyPairs[address]
	if !ok {
		return nil, cryptoDomain.ErrKeyPairNotFound
	}
	return sealedKeyPair(kp), nil
}

// SecretKeyRepository stores sealed secret keys by (owner, version).
type SecretKeyRepository struct {
	store *Store
}

func (r *SecretKeyRepository) Create(ctx context.Context, key *cryptoDomain.SecretKey) error {
	return r.store.write(ctx, func(st *state) error {
		versions, ok := st.secretKeys[key.OwnerID]
		if !ok {
			versions = make(map[uint64]cryptoDomain.SecretKey)
			st.secretKeys[key.OwnerID] = versions
		}
		if _, exists := versions[key.Version]; exists {
			return cryptoDomain.ErrKeyVersionConflict
		}
		versions[key.Version] = *key.Sealed()
		return nil
	})
}

func (r *SecretKeyRepository) GetCurrent(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error) {
	versions := r.store.read(ctx).secretKeys[ownerID]
	var (
		current cryptoDomain.SecretKey
		found   bool
	)
	for v, key := range versions {
		if !found || v > current.Version {
			current, found = key, true
		}
	}
	if !found {
		return nil, cryptoDomain.ErrSecretKeyNotFound
	}
	return current.Sealed(), nil
}

func (r *SecretKeyRepository) Get(
	ctx context.Context,
	ownerID string,
	version uint64,
) (*cryptoDomain.SecretKey, error) {
	key, ok := r.store.read(ctx).secretKeys[ownerID][version]
	if !ok {
		return nil, cryptoDomain.ErrSecretKeyNotFound
	}
	return key.Sealed(), nil
}

func (r *SecretKeyRepository) DeleteBelow(ctx context.Context, ownerID string, version uint64) (int64, error) {
	var deleted int64
	err := r.store.write(ctx, func(st *state) error {
		for v := range st.secretKeys[ownerID] {
			if v < version {
				delete(st.secretKeys[ownerID], v)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
