package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/box"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// HKDF info strings. Each sealed object type gets its own key derived from the master key,
// so a secret key ciphertext can never be opened as a keypair ciphertext and vice versa.
const (
	secretKeySealingInfo = "secret-key-sealing-v1"
	keyPairSealingInfo   = "keypair-sealing-v1"
)

// KeyManagerService implements KeyManager.
//
// Secret keys are sealed with AAD = ownerID || 0x00 || version so a row copied to another
// owner or version fails to unseal. Keypairs are sealed with AAD = address || box public
// key || signing public key.
type KeyManagerService struct {
	aeadManager AEADManager
}

// NewKeyManager creates a new KeyManagerService.
func NewKeyManager(aeadManager AEADManager) *KeyManagerService {
	return &KeyManagerService{
		aeadManager: aeadManager,
	}
}

func deriveSealingKey(masterKey *cryptoDomain.MasterKey, info string) ([]byte, error) {
	if masterKey == nil || len(masterKey.Key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey.Key, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}
	return key, nil
}

func (km *KeyManagerService) cipherFor(
	masterKey *cryptoDomain.MasterKey,
	info string,
	alg cryptoDomain.Algorithm,
) (AEAD, error) {
	sealingKey, err := deriveSealingKey(masterKey, info)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(sealingKey)
	return km.aeadManager.CreateCipher(sealingKey, alg)
}

func secretKeyAAD(ownerID string, version uint64) []byte {
	aad := make([]byte, 0, len(ownerID)+9)
	aad = append(aad, ownerID...)
	aad = append(aad, 0)
	return binary.BigEndian.AppendUint64(aad, version)
}

func keyPairAAD(kp *cryptoDomain.KeyPair) []byte {
	aad := make([]byte, 0, len(kp.Address)+32+ed25519.PublicKeySize)
	aad = append(aad, kp.Address...)
	aad = append(aad, kp.BoxPublicKey[:]...)
	return append(aad, kp.SigningPublicKey...)
}

// GenerateSecretKey creates fresh random material for (ownerID, version) and seals it.
func (km *KeyManagerService) GenerateSecretKey(
	ownerID string,
	version uint64,
	alg cryptoDomain.Algorithm,
	masterKey *cryptoDomain.MasterKey,
) (*cryptoDomain.SecretKey, error) {
	if _, ok := alg.Code(); !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	material := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}

	aead, err := km.cipherFor(masterKey, secretKeySealingInfo, alg)
	if err != nil {
		cryptoDomain.Zero(material)
		return nil, err
	}

	encrypted, nonce, err := aead.Encrypt(material, secretKeyAAD(ownerID, version))
	if err != nil {
		cryptoDomain.Zero(material)
		return nil, fmt.Errorf("failed to seal secret key: %w", err)
	}

	return &cryptoDomain.SecretKey{
		OwnerID:           ownerID,
		Version:           version,
		Algorithm:         alg,
		Material:          material,
		EncryptedMaterial: encrypted,
		MasterKeyID:       masterKey.ID,
		Nonce:             nonce,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// UnsealSecretKey decrypts key.EncryptedMaterial into key.Material.
func (km *KeyManagerService) UnsealSecretKey(
	key *cryptoDomain.SecretKey,
	masterKey *cryptoDomain.MasterKey,
) error {
	aead, err := km.cipherFor(masterKey, secretKeySealingInfo, key.Algorithm)
	if err != nil {
		return err
	}

	material, err := aead.Decrypt(key.EncryptedMaterial, key.Nonce, secretKeyAAD(key.OwnerID, key.Version))
	if err != nil {
		return cryptoDomain.ErrDecryptionFailed
	}
	key.Material = material
	return nil
}

// GenerateKeyPair creates an X25519 box keypair and an Ed25519 signing keypair for address.
func (km *KeyManagerService) GenerateKeyPair(
	address string,
	alg cryptoDomain.Algorithm,
	masterKey *cryptoDomain.MasterKey,
) (*cryptoDomain.KeyPair, error) {
	boxPub, boxPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate box keypair: %w", err)
	}
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		cryptoDomain.ZeroArray(boxPriv)
		return nil, fmt.Errorf("failed to generate signing keypair: %w", err)
	}

	kp := &cryptoDomain.KeyPair{
		Address:           address,
		BoxPublicKey:      *boxPub,
		BoxPrivateKey:     *boxPriv,
		SigningPublicKey:  signPub,
		SigningPrivateKey: signPriv,
		Algorithm:         alg,
		MasterKeyID:       masterKey.ID,
		CreatedAt:         time.Now().UTC(),
	}
	cryptoDomain.ZeroArray(boxPriv)

	aead, err := km.cipherFor(masterKey, keyPairSealingInfo, alg)
	if err != nil {
		kp.Close()
		return nil, err
	}

	raw := kp.MarshalPrivateKeys()
	defer cryptoDomain.Zero(raw)

	kp.EncryptedPrivateKeys, kp.Nonce, err = aead.Encrypt(raw, keyPairAAD(kp))
	if err != nil {
		kp.Close()
		return nil, fmt.Errorf("failed to seal keypair: %w", err)
	}
	return kp, nil
}

// UnsealKeyPair decrypts kp.EncryptedPrivateKeys into the private halves of kp.
func (km *KeyManagerService) UnsealKeyPair(
	kp *cryptoDomain.KeyPair,
	masterKey *cryptoDomain.MasterKey,
) error {
	aead, err := km.cipherFor(masterKey, keyPairSealingInfo, kp.Algorithm)
	if err != nil {
		return err
	}

	raw, err := aead.Decrypt(kp.EncryptedPrivateKeys, kp.Nonce, keyPairAAD(kp))
	if err != nil {
		return cryptoDomain.ErrDecryptionFailed
	}
	defer cryptoDomain.Zero(raw)

	return kp.UnmarshalPrivateKeys(raw)
}
