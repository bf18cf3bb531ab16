// Package service holds the record integrity check.
package service

import (
	"crypto/ed25519"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

// IntegrityVerifier checks decrypted content against the digest and signature registered
// for its record. Results are never cached: every read is checked.
type IntegrityVerifier struct {
	signatures cryptoService.SignatureEngine
}

// NewIntegrityVerifier creates an IntegrityVerifier.
func NewIntegrityVerifier(signatures cryptoService.SignatureEngine) *IntegrityVerifier {
	return &IntegrityVerifier{signatures: signatures}
}

// Check returns Verified only when plaintext hashes to record.SHA256 and record.Signature
// verifies over that digest under uploaderPublicKey.
func (v *IntegrityVerifier) Check(
	record *recordDomain.Record,
	plaintext []byte,
	uploaderPublicKey ed25519.PublicKey,
) recordDomain.Verification {
	if record == nil || record.SHA256.IsZero() {
		return recordDomain.TamperedContent
	}
	if !cryptoDomain.ComputeDigest(plaintext).Equal(record.SHA256) {
		return recordDomain.TamperedContent
	}
	if !v.signatures.Verify(uploaderPublicKey, record.SHA256, record.Signature) {
		return recordDomain.TamperedContent
	}
	return recordDomain.Verified
}
