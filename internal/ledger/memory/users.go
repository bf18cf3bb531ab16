package memory

import (
	"bytes"
	"context"
	"slices"
	"strings"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// UserRepository stores users.
type UserRepository struct {
	store *Store
}

func cloneUser(u identityDomain.User) *identityDomain.User {
	u.IdentityPublicKey = bytes.Clone(u.IdentityPublicKey)
	return &u
}

func (r *UserRepository) Create(ctx context.Context, user *identityDomain.User) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.users[user.Address]; ok {
			return identityDomain.ErrUserAlreadyExists
		}
		st.users[user.Address] = *cloneUser(*user)
		return nil
	})
}

func (r *UserRepository) Get(ctx context.Context, address string) (*identityDomain.User, error) {
	u, ok := r.store.read(ctx).users[address]
	if !ok {
		return nil, identityDomain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Update(ctx context.Context, user *identityDomain.User) error {
	return r.store.write(ctx, func(st *state) error {
		u, ok := st.users[user.Address]
		if !ok {
			return identityDomain.ErrUserNotFound
		}
		u.Name = user.Name
		u.Email = user.Email
		st.users[user.Address] = u
		return nil
	})
}

func (r *UserRepository) List(
	ctx context.Context,
	role identityDomain.Role,
	offset, limit int,
) ([]*identityDomain.User, error) {
	st := r.store.read(ctx)
	users := make([]*identityDomain.User, 0, len(st.users))
	for _, u := range st.users {
		if role != 0 && u.Role != role {
			continue
		}
		users = append(users, cloneUser(u))
	}
	slices.SortFunc(users, func(a, b *identityDomain.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Address, b.Address)
	})
	return page(users, offset, limit), nil
}

func (r *UserRepository) CountByRole(ctx context.Context) (map[identityDomain.Role]int64, error) {
	counts := make(map[identityDomain.Role]int64, len(identityDomain.Roles))
	for _, role := range identityDomain.Roles {
		counts[role] = 0
	}
	for _, u := range r.store.read(ctx).users {
		counts[u.Role]++
	}
	return counts, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
