package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// Record is the ledger metadata of one encrypted document.
//
// Everything except BlobRef, SHA256, Signature, KeyVersion, UpdatedAt and LastUpdatedBy is
// immutable after upload. Those six fields change together, atomically, when the owner's key
// is rotated and the document is re-encrypted.
type Record struct {
	ID          uuid.UUID
	OwnerID     string
	Filename    string
	Description string
	ContentType string
	SizeBytes   int64

	SHA256    cryptoDomain.Digest
	Signature []byte
	BlobRef   string
	// KeyVersion is the secret key version that encrypted the blob at BlobRef.
	KeyVersion uint64

	CreatedAt     time.Time
	CreatedBy     string
	UpdatedAt     time.Time
	LastUpdatedBy string
}

// Reencrypted returns a copy carrying a new key epoch. Immutable fields are kept.
func (r Record) Reencrypted(
	blobRef string,
	signature []byte,
	keyVersion uint64,
	updatedBy string,
	at time.Time,
) Record {
	r.BlobRef = blobRef
	r.Signature = signature
	r.KeyVersion = keyVersion
	r.LastUpdatedBy = updatedBy
	r.UpdatedAt = at
	return r
}
