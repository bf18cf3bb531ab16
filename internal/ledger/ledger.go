// Package ledger commits the outcome of a revocation as one atomic change.
//
// A Batch carries everything a revocation produced: the next secret key version, the grant
// being revoked, the re-wrapped grants of the remaining grantees and the re-encrypted
// records. Commit applies all of it inside a single TxManager transaction or none of it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/database"
	apperrors "github.com/allisson/recordvault/internal/errors"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	recordDomain "github.com/allisson/recordvault/internal/record/domain"
)

var (
	// ErrTransaction indicates the ledger rejected a batch. Nothing from the batch is visible.
	ErrTransaction = apperrors.Wrap(apperrors.ErrUnavailable, "ledger transaction rejected")

	// ErrInvalidBatch indicates a batch that is inconsistent with itself.
	ErrInvalidBatch = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid ledger batch")
)

// KeyStore persists a secret key version with compare-and-swap on the previous version.
type KeyStore interface {
	Store(ctx context.Context, key *cryptoDomain.SecretKey) error
}

// GrantStore is the grant side of a batch.
type GrantStore interface {
	Grant(ctx context.Context, grant *grantDomain.AccessGrant) error
	Revoke(ctx context.Context, ownerID, granteeID string) error
	ListGrants(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error)
}

// RecordStore is the record side of a batch.
type RecordStore interface {
	UpdateKeyEpoch(ctx context.Context, record *recordDomain.Record, expectedVersion uint64) error
	CountByOwnerAndVersion(ctx context.Context, ownerID string, version uint64) (int64, error)
}

// Batch is the staged result of one revocation.
type Batch struct {
	OwnerID string

	// NewKey becomes the owner's current key. The owner must still be at NewKey.Version-1.
	NewKey *cryptoDomain.SecretKey

	// RevokedGrantees lose their grants. Missing grants are ignored.
	RevokedGrantees []string

	// Grants are the remaining grantees' grants, all at NewKey.Version.
	Grants []*grantDomain.AccessGrant

	// Records are every record of the owner, re-encrypted under NewKey.
	Records []*recordDomain.Record
}

// ExpectedVersion is the version the owner must be at for the batch to apply.
func (b *Batch) ExpectedVersion() uint64 {
	if b.NewKey == nil || b.NewKey.Version == 0 {
		return 0
	}
	return b.NewKey.Version - 1
}

// Validate checks the batch is self-consistent.
func (b *Batch) Validate() error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil batch", ErrInvalidBatch)
	case b.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidBatch)
	case b.NewKey == nil || b.NewKey.Version < 2:
		return fmt.Errorf("%w: new key must follow an existing version", ErrInvalidBatch)
	case b.NewKey.OwnerID != b.OwnerID:
		return fmt.Errorf("%w: new key belongs to %s", ErrInvalidBatch, b.NewKey.OwnerID)
	}

	for _, g := range b.Grants {
		if g.OwnerID != b.OwnerID || g.KeyVersion != b.NewKey.Version {
			return fmt.Errorf("%w: grant %s/%s at version %d",
				ErrInvalidBatch, g.OwnerID, g.GranteeID, g.KeyVersion)
		}
		if slices.Contains(b.RevokedGrantees, g.GranteeID) {
			return fmt.Errorf("%w: revoked grantee %s is re-granted", ErrInvalidBatch, g.GranteeID)
		}
	}
	for _, r := range b.Records {
		if r.OwnerID != b.OwnerID || r.KeyVersion != b.NewKey.Version {
			return fmt.Errorf("%w: record %s at version %d", ErrInvalidBatch, r.ID, r.KeyVersion)
		}
	}
	return nil
}

// Ledger applies batches atomically.
type Ledger struct {
	txManager database.TxManager
	keys      KeyStore
	grants    GrantStore
	records   RecordStore
}

// New creates a Ledger. The stores must join transactions opened by txManager.
func New(txManager database.TxManager, keys KeyStore, grants GrantStore, records RecordStore) *Ledger {
	return &Ledger{txManager: txManager, keys: keys, grants: grants, records: records}
}

// Commit applies the batch or nothing. Any rejection, including a lost race with another
// writer, is returned as ErrTransaction joined with the cause.
func (l *Ledger) Commit(ctx context.Context, batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	err := l.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := l.keys.Store(ctx, batch.NewKey); err != nil {
			return err
		}

		for _, grantee := range batch.RevokedGrantees {
			err := l.grants.Revoke(ctx, batch.OwnerID, grantee)
			if err != nil && !errors.Is(err, grantDomain.ErrGrantNotFound) {
				return err
			}
		}
		for _, g := range batch.Grants {
			if err := l.grants.Grant(ctx, g); err != nil {
				return err
			}
		}
		if err := l.checkGrants(ctx, batch); err != nil {
			return err
		}

		expected := batch.ExpectedVersion()
		for _, r := range batch.Records {
			if err := l.records.UpdateKeyEpoch(ctx, r, expected); err != nil {
				return err
			}
		}
		left, err := l.records.CountByOwnerAndVersion(ctx, batch.OwnerID, expected)
		if err != nil {
			return err
		}
		if left != 0 {
			return fmt.Errorf("%w: %d records at version %d are not part of the batch",
				recordDomain.ErrStaleRecord, left, expected)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransaction, err)
	}
	return nil
}

// checkGrants rejects the batch when a grant was issued at the old version after the
// batch was staged. Committing would silently revoke it.
func (l *Ledger) checkGrants(ctx context.Context, batch *Batch) error {
	grants, err := l.grants.ListGrants(ctx, batch.OwnerID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if g.KeyVersion != batch.NewKey.Version {
			return fmt.Errorf("%w: grant for %s at version %d is not part of the batch",
				grantDomain.ErrGrantConflict, g.GranteeID, g.KeyVersion)
		}
	}
	return nil
}
