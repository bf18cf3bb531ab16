package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
)

func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("local secrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, keeper.Close())
		}()

		plaintext := make([]byte, cryptoDomain.KeySize)
		ciphertext, err := keeper.Encrypt(ctx, plaintext)
		require.NoError(t, err)
		decrypted, err := keeper.Decrypt(ctx, ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("invalid uri", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})
}

func TestKMSService_MasterKeyChainFromKMS(t *testing.T) {
	ctx := context.Background()
	keeper, err := NewKMSService().OpenKeeper(ctx, generateLocalSecretsURI(t))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, keeper.Close())
	}()

	plain := randomKey(t)
	sealed, err := keeper.Encrypt(ctx, plain)
	require.NoError(t, err)

	chain, err := cryptoDomain.LoadMasterKeyChain(
		ctx,
		"kms1:"+base64.StdEncoding.EncodeToString(sealed),
		"kms1",
		keeper,
	)
	require.NoError(t, err)
	defer chain.Close()

	mk, ok := chain.Active()
	require.True(t, ok)
	assert.Equal(t, plain, mk.Key)

	other, err := NewKMSService().OpenKeeper(ctx, generateLocalSecretsURI(t))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, other.Close())
	}()
	_, err = cryptoDomain.LoadMasterKeyChain(
		ctx,
		"kms1:"+base64.StdEncoding.EncodeToString(sealed),
		"kms1",
		other,
	)
	assert.Error(t, err)
}
