package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
)

// MasterKey is the root of the key hierarchy. Master keys never touch documents directly;
// they seal owner secret keys and users' private keys at rest.
type MasterKey struct {
	ID  string
	Key []byte
}

// KMSKeeper decrypts master keys that are stored KMS-encrypted in MASTER_KEYS.
// *secrets.Keeper from gocloud.dev satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// MasterKeyChain manages a collection of master keys with one designated as active.
//
// Sealed material records the ID of the master key that sealed it, so old keys stay
// loadable while everything new is sealed with the active one.
//
// Thread safety: The keychain uses sync.Map internally for concurrent access.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// NewMasterKeyChain builds a keychain from already-decoded keys.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) *MasterKeyChain {
	mkc := &MasterKeyChain{activeID: activeID}
	for _, key := range keys {
		mkc.keys.Store(key.ID, key)
	}
	return mkc
}

// ActiveMasterKeyID returns the ID of the currently active master key.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Active returns the active master key.
func (m *MasterKeyChain) Active() (*MasterKey, bool) {
	return m.Get(m.activeID)
}

// Get returns the master key with the given ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}

	return nil, false
}

// Close zeroes every loaded key and empties the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		if masterKey, ok := value.(*MasterKey); ok {
			Zero(masterKey.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChainFromEnv reads MASTER_KEYS ("id1:base64,id2:base64") and
// ACTIVE_MASTER_KEY_ID from the environment. Values are plain base64 keys.
func LoadMasterKeyChainFromEnv() (*MasterKeyChain, error) {
	return LoadMasterKeyChain(
		context.Background(),
		os.Getenv("MASTER_KEYS"),
		os.Getenv("ACTIVE_MASTER_KEY_ID"),
		nil,
	)
}

// LoadMasterKeyChain parses a MASTER_KEYS value. When keeper is not nil every value is
// treated as KMS ciphertext and decrypted through it before use.
func LoadMasterKeyChain(
	ctx context.Context,
	raw string,
	active string,
	keeper KMSKeeper,
) (*MasterKeyChain, error) {
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]
		decoded, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}

		key := decoded
		if keeper != nil {
			key, err = keeper.Decrypt(ctx, decoded)
			Zero(decoded)
			if err != nil {
				mkc.Close()
				return nil, fmt.Errorf("failed to decrypt master key %s with KMS: %w", id, err)
			}
		}

		if len(key) != KeySize {
			Zero(key)
			mkc.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				id,
				KeySize,
				len(key),
			)
		}
		mkc.keys.Store(id, &MasterKey{ID: id, Key: key})
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}
