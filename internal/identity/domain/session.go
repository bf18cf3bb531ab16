package domain

import (
	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

// Session is the authenticated context of one caller. It is passed explicitly to every
// operation and closed when the request ends, which zeroes the private keys it holds.
type Session struct {
	User *User
	Keys *cryptoDomain.KeyPair
}

// Principal returns the session user, or nil for a nil session.
func (s *Session) Principal() *User {
	if s == nil {
		return nil
	}
	return s.User
}

// Address returns the session's identity, or "" for a nil session.
func (s *Session) Address() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.Address
}

// Role returns the session user's role, or 0 for a nil session.
func (s *Session) Role() Role {
	if s == nil || s.User == nil {
		return 0
	}
	return s.User.Role
}

// Close zeroes private key material.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.Keys.Close()
}
