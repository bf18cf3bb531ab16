package domain

import (
	"github.com/allisson/recordvault/internal/errors"
)

var (
	// ErrGrantNotFound indicates there is no grant for the (owner, grantee) pair.
	ErrGrantNotFound = errors.Wrap(errors.ErrNotFound, "access grant not found")

	// ErrGrantConflict indicates a stale write: the registry already holds a grant at a
	// newer key version for the same pair.
	ErrGrantConflict = errors.Wrap(errors.ErrConflict, "access grant conflict")

	// ErrStaleGrant indicates the grant's key version is not the owner's current one.
	ErrStaleGrant = errors.Wrap(errors.ErrForbidden, "access grant is stale")

	// ErrAccessDenied indicates the grantee holds no grant from the owner.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "no access grant from owner")

	// ErrGranteeNotEligible indicates the target user cannot receive grants.
	ErrGranteeNotEligible = errors.Wrap(errors.ErrInvalidInput, "user cannot be granted access")
)
