package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allisson/recordvault/internal/database"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
)

type accessGrantRegistry struct {
	txManager database.TxManager
	repo      GrantRepository
}

// NewAccessGrantRegistry creates an AccessGrantRegistry.
func NewAccessGrantRegistry(txManager database.TxManager, repo GrantRepository) AccessGrantRegistry {
	return &accessGrantRegistry{txManager: txManager, repo: repo}
}

func (r *accessGrantRegistry) Grant(ctx context.Context, grant *grantDomain.AccessGrant) error {
	return r.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.repo.Get(ctx, grant.OwnerID, grant.GranteeID)
		switch {
		case errors.Is(err, grantDomain.ErrGrantNotFound):
		case err != nil:
			return err
		case existing.KeyVersion > grant.KeyVersion:
			return fmt.Errorf("%w: registry holds version %d, got %d",
				grantDomain.ErrGrantConflict, existing.KeyVersion, grant.KeyVersion)
		}

		now := time.Now().UTC()
		if grant.CreatedAt.IsZero() {
			grant.CreatedAt = now
		}
		grant.UpdatedAt = now
		return r.repo.Upsert(ctx, grant)
	})
}

func (r *accessGrantRegistry) Revoke(ctx context.Context, ownerID, granteeID string) error {
	return r.repo.Delete(ctx, ownerID, granteeID)
}

func (r *accessGrantRegistry) Get(
	ctx context.Context,
	ownerID, granteeID string,
) (*grantDomain.AccessGrant, error) {
	return r.repo.Get(ctx, ownerID, granteeID)
}

func (r *accessGrantRegistry) ListGrantees(ctx context.Context, ownerID string) ([]string, error) {
	grants, err := r.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	grantees := make([]string, 0, len(grants))
	for _, g := range grants {
		grantees = append(grantees, g.GranteeID)
	}
	return grantees, nil
}

func (r *accessGrantRegistry) ListGrants(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error) {
	return r.repo.ListByOwner(ctx, ownerID)
}

func (r *accessGrantRegistry) ListGrantedOwners(ctx context.Context, granteeID string) ([]string, error) {
	grants, err := r.repo.ListByGrantee(ctx, granteeID)
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(grants))
	for _, g := range grants {
		owners = append(owners, g.OwnerID)
	}
	return owners, nil
}
