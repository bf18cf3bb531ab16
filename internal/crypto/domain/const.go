package domain

// Algorithm represents the authenticated cipher used to protect document content.
//
// Both supported algorithms are AEADs with 256-bit keys, 12-byte nonces and 16-byte tags,
// so a decryption failure always means the key, the nonce or the bytes are wrong; it can
// never silently produce garbage plaintext.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on systems without AES-NI
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KeySize is the size in bytes of every symmetric key handled by the service
// (master keys, owner secret keys).
const KeySize = 32

// algorithmCodes maps algorithms to the single byte stored in ciphertext headers and
// wrapped key payloads.
var algorithmCodes = map[Algorithm]byte{
	AESGCM:   1,
	ChaCha20: 2,
}

// Code returns the wire code of the algorithm, or false for unknown algorithms.
func (a Algorithm) Code() (byte, bool) {
	code, ok := algorithmCodes[a]
	return code, ok
}

// AlgorithmFromCode resolves a wire code back to its algorithm.
func AlgorithmFromCode(code byte) (Algorithm, bool) {
	for alg, c := range algorithmCodes {
		if c == code {
			return alg, true
		}
	}
	return "", false
}

// ParseAlgorithm validates an algorithm name coming from configuration or CLI flags.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(name)
	if _, ok := alg.Code(); !ok {
		return "", ErrUnsupportedAlgorithm
	}
	return alg, nil
}
