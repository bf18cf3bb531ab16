// Package usecase implements the revocation coordinator: full revocation of a grantee's
// access by rotating the owner's key and re-encrypting every record under it.
package usecase

import (
	"context"
	"crypto/ed25519"

	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/ledger"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
	revocationDomain "github.com/allisson/recordvault/internal/revocation/domain"
)

// RecordLister returns every record of an owner.
type RecordLister interface {
	ListAllByOwner(ctx context.Context, ownerID string) ([]*recordDomain.Record, error)
}

// GrantReader reads the owner's grants.
type GrantReader interface {
	Get(ctx context.Context, ownerID, granteeID string) (*grantDomain.AccessGrant, error)
	ListGrants(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error)
}

// Committer applies a staged batch atomically.
type Committer interface {
	Commit(ctx context.Context, batch *ledger.Batch) error
}

// IntegrityVerifier checks decrypted content against the record before it is re-signed.
type IntegrityVerifier interface {
	Check(record *recordDomain.Record, plaintext []byte, uploaderPublicKey ed25519.PublicKey) recordDomain.Verification
}

// RevocationCoordinator removes a grantee's access to everything the owner stored, past and
// future.
type RevocationCoordinator interface {
	// Revoke rotates the session owner's key, re-encrypts every record under the new version,
	// re-wraps it for the remaining grantees and commits the result atomically. The returned
	// run is the last snapshot, Done on success and Failed otherwise.
	Revoke(ctx context.Context, session *identityDomain.Session, granteeID string) (revocationDomain.Run, error)
}
