// Package usecase implements the user registry and session opening.
package usecase

import (
	"context"
	"crypto/ed25519"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// UserRepository persists users.
type UserRepository interface {
	// Create inserts a user, or returns ErrUserAlreadyExists.
	Create(ctx context.Context, user *identityDomain.User) error

	// Get returns the user at address, or ErrUserNotFound.
	Get(ctx context.Context, address string) (*identityDomain.User, error)

	// List pages through users ordered by creation time. A zero role lists every role.
	List(ctx context.Context, role identityDomain.Role, offset, limit int) ([]*identityDomain.User, error)

	// Update stores the user's name and email, or returns ErrUserNotFound.
	Update(ctx context.Context, user *identityDomain.User) error

	// CountByRole returns the number of users per role, including zero counts.
	CountByRole(ctx context.Context) (map[identityDomain.Role]int64, error)
}

// RegisterInput describes a user to onboard.
type RegisterInput struct {
	Address           string
	Role              identityDomain.Role
	Name              string
	Email             string
	IdentityPublicKey ed25519.PublicKey
}

// UpdateInput carries the profile fields a user may change on their own account.
type UpdateInput struct {
	Name  string
	Email string
}

// UserUseCase manages the user registry. Registering a user also generates their keypair.
type UserUseCase interface {
	// Register onboards a user on behalf of actor, subject to Role.CanRegister.
	Register(ctx context.Context, actor *identityDomain.Session, input RegisterInput) (*identityDomain.Profile, error)

	// Bootstrap registers an administrator without an actor. It is used by the CLI to
	// create the first admin.
	Bootstrap(ctx context.Context, input RegisterInput) (*identityDomain.Profile, error)

	// Get returns a user's profile and published keys.
	Get(ctx context.Context, address string) (*identityDomain.Profile, error)

	// List pages through users. Admin only.
	List(
		ctx context.Context,
		actor *identityDomain.Session,
		role identityDomain.Role,
		offset, limit int,
	) ([]*identityDomain.User, error)

	// Stats returns user counts per role. Admin only.
	Stats(ctx context.Context, actor *identityDomain.Session) (map[identityDomain.Role]int64, error)

	// ListGrantees pages through grantees with their published keys, so an owner can
	// pick whom to grant access to. Owners and admins only.
	ListGrantees(
		ctx context.Context,
		actor *identityDomain.Session,
		offset, limit int,
	) ([]*identityDomain.Profile, error)

	// Update changes the actor's own name and email.
	Update(ctx context.Context, actor *identityDomain.Session, input UpdateInput) (*identityDomain.Profile, error)
}

// SessionUseCase turns an identity proof into an authenticated session.
type SessionUseCase interface {
	// Open verifies proof, unseals the caller's keypair and returns a session the caller
	// must Close. Every failure wraps cryptoDomain.ErrKeyRetrieval.
	Open(ctx context.Context, proof identityDomain.Proof) (*identityDomain.Session, error)
}
