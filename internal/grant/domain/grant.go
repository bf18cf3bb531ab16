package domain

import (
	"time"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// AccessGrant gives GranteeID the owner's secret key at KeyVersion, wrapped to the
// grantee's public key. A grant whose KeyVersion is not the owner's current version is
// stale and treated as revoked.
type AccessGrant struct {
	OwnerID    string
	GranteeID  string
	WrappedKey cryptoDomain.WrappedKey
	KeyVersion uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValidFor reports whether the grant is usable against the owner's current key version.
func (g *AccessGrant) IsValidFor(currentVersion uint64) bool {
	return g != nil && g.KeyVersion == currentVersion
}
