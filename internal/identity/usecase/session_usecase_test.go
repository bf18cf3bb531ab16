package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityService "github.com/allisson/recordvault/internal/identity/service"
)

func TestSessionUseCase_Open(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := newIdentity(t, "0xadmin")
	profile, err := f.users.Bootstrap(ctx, admin.input(identityDomain.RoleAdmin))
	require.NoError(t, err)

	t.Run("valid proof unseals the keypair", func(t *testing.T) {
		session, err := f.sessions.Open(ctx, admin.proof())
		require.NoError(t, err)
		assert.Equal(t, "0xadmin", session.Address())
		assert.Equal(t, identityDomain.RoleAdmin, session.Role())
		assert.True(t, session.Keys.HasPrivateKeys())
		assert.Equal(t, profile.Keys.BoxPublicKey, session.Keys.BoxPublicKey)

		session.Close()
		assert.False(t, session.Keys.HasPrivateKeys())
	})

	t.Run("proof signed by another key", func(t *testing.T) {
		impostor := newIdentity(t, "0xadmin")
		_, err := f.sessions.Open(ctx, impostor.proof())
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyRetrieval)
		assert.ErrorIs(t, err, identityDomain.ErrInvalidProof)
	})

	t.Run("stale proof", func(t *testing.T) {
		proof := identityService.SignProof(admin.private, admin.address, time.Now().Add(-time.Hour))
		_, err := f.sessions.Open(ctx, proof)
		assert.ErrorIs(t, err, identityDomain.ErrProofExpired)
	})

	t.Run("unknown address", func(t *testing.T) {
		stranger := newIdentity(t, "0xstranger")
		_, err := f.sessions.Open(ctx, stranger.proof())
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyRetrieval)
	})
}
