package domain

import (
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/errors"
)

var (
	// ErrUserNotFound indicates no user is registered at the address.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates the address is already registered.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrInvalidRole indicates an unknown role name.
	ErrInvalidRole = errors.Wrap(errors.ErrInvalidInput, "invalid role")

	// ErrInvalidProof indicates the identity proof signature did not verify.
	ErrInvalidProof = errors.Wrap(cryptoDomain.ErrKeyRetrieval, "invalid identity proof")

	// ErrProofExpired indicates the proof is older than the configured maximum age,
	// or issued in the future.
	ErrProofExpired = errors.Wrap(cryptoDomain.ErrKeyRetrieval, "identity proof expired")

	// ErrForbiddenAction indicates the role does not allow the action on this owner.
	ErrForbiddenAction = errors.Wrap(errors.ErrForbidden, "action not allowed for role")

	// ErrRegistrationNotAllowed indicates the actor's role cannot register the target role.
	ErrRegistrationNotAllowed = errors.Wrap(errors.ErrForbidden, "registration not allowed for role")
)
