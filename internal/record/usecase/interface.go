// Package usecase implements the record pipeline: encrypted upload, verified read and
// metadata listing of an owner's documents.
package usecase

import (
	"context"
	"crypto/ed25519"

	"github.com/google/uuid"

	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

// RecordRepository persists record metadata.
type RecordRepository interface {
	// Create inserts a new record.
	Create(ctx context.Context, record *recordDomain.Record) error

	// Get returns a record by ID, or ErrRecordNotFound.
	Get(ctx context.Context, id uuid.UUID) (*recordDomain.Record, error)

	// ListByOwner returns a page of the owner's records ordered by ID.
	ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*recordDomain.Record, error)

	// ListAllByOwner returns every record of the owner ordered by ID.
	ListAllByOwner(ctx context.Context, ownerID string) ([]*recordDomain.Record, error)

	// UpdateKeyEpoch replaces the key epoch fields (BlobRef, SHA256, Signature, KeyVersion,
	// UpdatedAt, LastUpdatedBy) only if the stored record is still at expectedVersion;
	// otherwise ErrStaleRecord.
	UpdateKeyEpoch(ctx context.Context, record *recordDomain.Record, expectedVersion uint64) error

	// CountByOwnerAndVersion counts the owner's records encrypted under version.
	CountByOwnerAndVersion(ctx context.Context, ownerID string, version uint64) (int64, error)
}

// GrantLookup resolves the grant a grantee holds from an owner.
type GrantLookup interface {
	Get(ctx context.Context, ownerID, granteeID string) (*grantDomain.AccessGrant, error)
}

// IntegrityVerifier checks decrypted content against its record.
type IntegrityVerifier interface {
	Check(
		record *recordDomain.Record,
		plaintext []byte,
		uploaderPublicKey ed25519.PublicKey,
	) recordDomain.Verification
}

// UploadInput describes a document to store in an owner's file.
type UploadInput struct {
	OwnerID     string
	Filename    string
	Description string
	ContentType string
	Content     []byte
}

// Document is a record together with its verified plaintext.
type Document struct {
	Record  *recordDomain.Record
	Content []byte
}

// RecordPipeline moves documents between callers, the blob store and the ledger.
type RecordPipeline interface {
	// Upload encrypts, signs and stores content for input.OwnerID. Owners upload with
	// their current key; grantees upload through a grant valid for the current key version.
	Upload(ctx context.Context, session *identityDomain.Session, input UploadInput) (*recordDomain.Record, error)

	// Read fetches, decrypts and verifies a record. Content is returned only when the
	// integrity check passes.
	Read(ctx context.Context, session *identityDomain.Session, id uuid.UUID) (*Document, error)

	// List returns metadata of the owner's records; no content is fetched.
	List(
		ctx context.Context,
		session *identityDomain.Session,
		ownerID string,
		offset, limit int,
	) ([]*recordDomain.Record, error)
}
