// Package usecase implements the access grant registry and the owner-facing grant
// operations.
package usecase

import (
	"context"

	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// GrantRepository persists access grants keyed by (owner, grantee).
type GrantRepository interface {
	Get(ctx context.Context, ownerID, granteeID string) (*grantDomain.AccessGrant, error)

	// Upsert inserts or replaces the grant. CreatedAt of an existing grant is kept.
	Upsert(ctx context.Context, grant *grantDomain.AccessGrant) error

	// Delete removes the grant, or returns ErrGrantNotFound.
	Delete(ctx context.Context, ownerID, granteeID string) error

	// ListByOwner returns the owner's grants ordered by grantee.
	ListByOwner(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error)

	// ListByGrantee returns the grants held by grantee ordered by owner.
	ListByGrantee(ctx context.Context, granteeID string) ([]*grantDomain.AccessGrant, error)
}

// UserLookup resolves registered users.
type UserLookup interface {
	Get(ctx context.Context, address string) (*identityDomain.User, error)
}

// AccessGrantRegistry records which grantees hold the owner's key and at which version.
// It never rotates keys.
type AccessGrantRegistry interface {
	// Grant upserts grant. A stored grant at a newer key version wins: ErrGrantConflict.
	Grant(ctx context.Context, grant *grantDomain.AccessGrant) error

	// Revoke deletes the grant without rotating the owner's key.
	Revoke(ctx context.Context, ownerID, granteeID string) error

	Get(ctx context.Context, ownerID, granteeID string) (*grantDomain.AccessGrant, error)

	// ListGrantees returns the addresses the owner has granted access to.
	ListGrantees(ctx context.Context, ownerID string) ([]string, error)

	// ListGrants returns the owner's grants.
	ListGrants(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error)

	// ListGrantedOwners returns the owners that granted access to grantee.
	ListGrantedOwners(ctx context.Context, granteeID string) ([]string, error)
}

// GrantUseCase is the session-facing side of access grants.
type GrantUseCase interface {
	// Grant wraps the owner's current key for grantee and registers it. It never rotates.
	Grant(ctx context.Context, session *identityDomain.Session, granteeID string) (*grantDomain.AccessGrant, error)

	// List returns the session owner's grants.
	List(ctx context.Context, session *identityDomain.Session) ([]*grantDomain.AccessGrant, error)

	// ListGrantedOwners returns the owners that granted access to the session grantee.
	ListGrantedOwners(ctx context.Context, session *identityDomain.Session) ([]string, error)
}
