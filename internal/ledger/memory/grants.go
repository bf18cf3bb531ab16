package memory

import (
	"bytes"
	"context"
	"slices"
	"strings"

	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
)

// GrantRepository stores access grants by (owner, grantee).
type GrantRepository struct {
	store *Store
}

func cloneGrant(g grantDomain.AccessGrant) *grantDomain.AccessGrant {
	g.WrappedKey = bytes.Clone(g.WrappedKey)
	return &g
}

func (r *GrantRepository) Get(
	ctx context.Context,
	ownerID, granteeID string,
) (*grantDomain.AccessGrant, error) {
	g, ok := r.store.read(ctx).grants[grantKey{ownerID, granteeID}]
	if !ok {
		return nil, grantDomain.ErrGrantNotFound
	}
	return cloneGrant(g), nil
}

func (r *GrantRepository) Upsert(ctx context.Context, grant *grantDomain.AccessGrant) error {
	return r.store.write(ctx, func(st *state) error {
		key := grantKey{grant.OwnerID, grant.GranteeID}
		stored := *cloneGrant(*grant)
		if existing, ok := st.grants[key]; ok {
			if existing.KeyVersion > grant.KeyVersion {
				return grantDomain.ErrGrantConflict
			}
			stored.CreatedAt = existing.CreatedAt
		}
		st.grants[key] = stored
		return nil
	})
}

func (r *GrantRepository) Delete(ctx context.Context, ownerID, granteeID string) error {
	return r.store.write(ctx, func(st *state) error {
		key := grantKey{ownerID, granteeID}
		if _, ok := st.grants[key]; !ok {
			return grantDomain.ErrGrantNotFound
		}
		delete(st.grants, key)
		return nil
	})
}

func (r *GrantRepository) list(ctx context.Context, match func(grantKey) bool) []*grantDomain.AccessGrant {
	var grants []*grantDomain.AccessGrant
	for key, g := range r.store.read(ctx).grants {
		if match(key) {
			grants = append(grants, cloneGrant(g))
		}
	}
	slices.SortFunc(grants, func(a, b *grantDomain.AccessGrant) int {
		if c := strings.Compare(a.OwnerID, b.OwnerID); c != 0 {
			return c
		}
		return strings.Compare(a.GranteeID, b.GranteeID)
	})
	return grants
}

func (r *GrantRepository) ListByOwner(ctx context.Context, ownerID string) ([]*grantDomain.AccessGrant, error) {
	return r.list(ctx, func(k grantKey) bool { return k.owner == ownerID }), nil
}

func (r *GrantRepository) ListByGrantee(ctx context.Context, granteeID string) ([]*grantDomain.AccessGrant, error) {
	return r.list(ctx, func(k grantKey) bool { return k.grantee == granteeID }), nil
}
