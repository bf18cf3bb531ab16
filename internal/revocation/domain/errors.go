package domain

import (
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	"github.com/allisson/recordvault/internal/errors"
)

var (
	// ErrInvalidTransition indicates a state machine edge that does not exist.
	ErrInvalidTransition = errors.New("invalid revocation state transition")

	// ErrRevocationInProgress indicates another revocation for the same owner is running.
	// It is a version conflict: both runs would race to produce the same key version.
	ErrRevocationInProgress = errors.Wrap(cryptoDomain.ErrKeyVersionConflict, "revocation already in progress")
)
