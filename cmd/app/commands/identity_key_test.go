package commands

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	"github.com/allisson/recordvault/internal/testutil"
)

func createIdentityKey(t *testing.T) identityKeyOutput {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, RunCreateIdentityKey(&out, "json"))

	var key identityKeyOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &key))
	return key
}

func TestRunCreateIdentityKey(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		key := createIdentityKey(t)

		pub, err := base64.StdEncoding.DecodeString(key.PublicKey)
		require.NoError(t, err)
		seed, err := base64.StdEncoding.DecodeString(key.PrivateKey)
		require.NoError(t, err)
		require.Len(t, seed, ed25519.SeedSize)

		derived := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		assert.Equal(t, ed25519.PublicKey(pub), derived)
	})

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunCreateIdentityKey(&out, "text"))
		assert.Contains(t, out.String(), "IDENTITY_PUBLIC_KEY=")
		assert.Contains(t, out.String(), "IDENTITY_PRIVATE_KEY=")
	})

	t.Run("invalid-format", func(t *testing.T) {
		require.Error(t, RunCreateIdentityKey(io.Discard, "yaml"))
	})
}

func TestRunSignIdentityProof(t *testing.T) {
	key := createIdentityKey(t)
	now := time.Unix(1700000000, 0)

	t.Run("verifies", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunSignIdentityProof(&out, "0xadmin", "get", "/v1/users/stats", key.PrivateKey, "json", now))

		var proof identityProofOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &proof))
		assert.Equal(t, "0xadmin", proof.Address)
		assert.Equal(t, "1700000000", proof.IssuedAt)

		pub, err := base64.StdEncoding.DecodeString(key.PublicKey)
		require.NoError(t, err)
		sig, err := base64.StdEncoding.DecodeString(proof.Signature)
		require.NoError(t, err)
		request := identityDomain.RequestScope("GET", "/v1/users/stats")
		assert.True(t, ed25519.Verify(pub, identityDomain.RequestProofMessage("0xadmin", now, request), sig))
		assert.False(t, ed25519.Verify(pub, identityDomain.ProofMessage("0xadmin", now), sig))
	})

	t.Run("text headers", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunSignIdentityProof(&out, "0xadmin", "GET", "/v1/users", key.PrivateKey, "text", now))
		assert.Contains(t, out.String(), "X-Identity-Address: 0xadmin\n")
		assert.Contains(t, out.String(), "X-Identity-Issued-At: 1700000000\n")
		assert.Contains(t, out.String(), "X-Identity-Signature: ")
	})

	t.Run("errors", func(t *testing.T) {
		require.Error(t, RunSignIdentityProof(io.Discard, "", "GET", "/v1/users", key.PrivateKey, "text", now))
		require.Error(t, RunSignIdentityProof(io.Discard, "0xadmin", "", "/v1/users", key.PrivateKey, "text", now))
		require.Error(t, RunSignIdentityProof(io.Discard, "0xadmin", "GET", "v1/users", key.PrivateKey, "text", now))
		require.Error(t, RunSignIdentityProof(io.Discard, "0xadmin", "GET", "/v1/users", "%%%", "text", now))
		short := base64.StdEncoding.EncodeToString([]byte("short"))
		require.Error(t, RunSignIdentityProof(io.Discard, "0xadmin", "GET", "/v1/users", short, "text", now))
	})
}

func TestRunRegisterAdmin(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	key := createIdentityKey(t)

	t.Run("bootstrap", func(t *testing.T) {
		env := testutil.NewEnv(t)

		var out bytes.Buffer
		err := RunRegisterAdmin(
			ctx, env.Users, logger, &out, "0xadmin", "Admin", "admin@example.com", key.PublicKey, "json",
		)
		require.NoError(t, err)

		var registered registeredUserOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &registered))
		assert.Equal(t, "0xadmin", registered.Address)
		assert.Equal(t, identityDomain.RoleAdmin.String(), registered.Role)
		assert.NotEmpty(t, registered.BoxPublicKey)

		// the registered admin can open a session with proofs signed by the same key
		seed, err := base64.StdEncoding.DecodeString(key.PrivateKey)
		require.NoError(t, err)
		issued := time.Now()
		session, err := env.Sessions.Open(ctx, identityDomain.Proof{
			Address:   "0xadmin",
			IssuedAt:  issued,
			Signature: ed25519.Sign(ed25519.NewKeyFromSeed(seed), identityDomain.ProofMessage("0xadmin", issued)),
		})
		require.NoError(t, err)
		session.Close()

		err = RunRegisterAdmin(ctx, env.Users, logger, io.Discard, "0xadmin", "Admin", "", key.PublicKey, "text")
		require.Error(t, err, "address already registered")
	})

	t.Run("invalid public key", func(t *testing.T) {
		env := testutil.NewEnv(t)

		err := RunRegisterAdmin(ctx, env.Users, logger, io.Discard, "0xadmin", "Admin", "", "%%%", "text")
		require.Error(t, err)

		short := base64.StdEncoding.EncodeToString([]byte("short"))
		err = RunRegisterAdmin(ctx, env.Users, logger, io.Discard, "0xadmin", "Admin", "", short, "text")
		require.Error(t, err)
	})
}
