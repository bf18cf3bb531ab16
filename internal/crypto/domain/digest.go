package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DigestSize is the size of a SHA-256 digest.
const DigestSize = sha256.Size

// Digest is the SHA-256 of a document's plaintext. Signatures are made over it.
type Digest [DigestSize]byte

// ComputeDigest hashes plaintext.
func ComputeDigest(plaintext []byte) Digest {
	return Digest(sha256.Sum256(plaintext))
}

// ParseDigest decodes the hex form stored in the ledger.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest: %w", err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("invalid digest length %d", len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// Equal compares in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// IsZero reports whether the digest was never set.
func (d Digest) IsZero() bool {
	return d == Digest{}
}
