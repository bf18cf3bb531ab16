package service

import (
	"encoding/binary"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

const (
	ciphertextFormatV1 byte = 1

	// format(1) | algorithm(1) | key version(8)
	ciphertextHeaderSize = 10
)

// CipherEngineService implements CipherEngine on top of an AEADManager.
//
// Ciphertext layout:
//
//	format(1) | algorithm(1) | keyVersion(8, big endian) | nonce(12) | sealed || tag(16)
//
// The header is authenticated as AAD, so a blob cannot be opened under a key of a
// different epoch even when the material happens to match.
type CipherEngineService struct {
	aeadManager AEADManager
}

// NewCipherEngine creates a CipherEngineService.
func NewCipherEngine(aeadManager AEADManager) *CipherEngineService {
	return &CipherEngineService{aeadManager: aeadManager}
}

func header(alg cryptoDomain.Algorithm, version uint64) ([]byte, error) {
	code, ok := alg.Code()
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	h := make([]byte, ciphertextHeaderSize)
	h[0] = ciphertextFormatV1
	h[1] = code
	binary.BigEndian.PutUint64(h[2:], version)
	return h, nil
}

// Encrypt seals plaintext under key.
func (c *CipherEngineService) Encrypt(key *cryptoDomain.SecretKey, plaintext []byte) ([]byte, error) {
	aad, err := header(key.Algorithm, key.Version)
	if err != nil {
		return nil, err
	}

	aead, err := c.aeadManager.CreateCipher(key.Material, key.Algorithm)
	if err != nil {
		return nil, err
	}

	sealed, nonce, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(aad)+len(nonce)+len(sealed))
	out = append(out, aad...)
	out = append(out, nonce...)
	return append(out, sealed...), nil
}

// Decrypt opens ciphertext produced by Encrypt.
func (c *CipherEngineService) Decrypt(key *cryptoDomain.SecretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < ciphertextHeaderSize+NonceSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	if ciphertext[0] != ciphertextFormatV1 {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	alg, ok := cryptoDomain.AlgorithmFromCode(ciphertext[1])
	if !ok || alg != key.Algorithm {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	if binary.BigEndian.Uint64(ciphertext[2:ciphertextHeaderSize]) != key.Version {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	aead, err := c.aeadManager.CreateCipher(key.Material, alg)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	aad := ciphertext[:ciphertextHeaderSize]
	nonce := ciphertext[ciphertextHeaderSize : ciphertextHeaderSize+NonceSize]
	plaintext, err := aead.Decrypt(ciphertext[ciphertextHeaderSize+NonceSize:], nonce, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// CiphertextKeyVersion reads the key version from a ciphertext header without decrypting.
func CiphertextKeyVersion(ciphertext []byte) (uint64, bool) {
	if len(ciphertext) < ciphertextHeaderSize || ciphertext[0] != ciphertextFormatV1 {
		return 0, false
	}
	return binary.BigEndian.Uint64(ciphertext[2:ciphertextHeaderSize]), true
}
