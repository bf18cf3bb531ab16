// Package http provides the session middleware, per-identity rate limiting and the user
// registry handlers.
package http

import (
	"context"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

// sessionKey is a context key type for storing the authenticated session.
type sessionKey struct{}

// WithSession stores an authenticated session in the context.
func WithSession(ctx context.Context, session *identityDomain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession retrieves the authenticated session from the context.
// Returns (session, true) if a session is present, or (nil, false) otherwise.
func GetSession(ctx context.Context) (*identityDomain.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*identityDomain.Session)
	return session, ok && session != nil
}
