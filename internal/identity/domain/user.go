package domain

import (
	"crypto/ed25519"
	"time"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// User is a registered identity. Address is the stable identity (wallet address) and
// IdentityPublicKey verifies the proofs that open sessions for it.
type User struct {
	Address           string
	Role              Role
	Name              string
	Email             string
	IdentityPublicKey ed25519.PublicKey
	CreatedAt         time.Time
	CreatedBy         string
}

// Profile is a user together with the published half of their keypair.
type Profile struct {
	User *User
	Keys cryptoDomain.PublicKeys
}
