package usecase

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	"github.com/allisson/recordvault/internal/ledger/memory"
)

func newMasterKeyChain(t *testing.T) *cryptoDomain.MasterKeyChain {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	mkc := cryptoDomain.NewMasterKeyChain("mk-1", &cryptoDomain.MasterKey{ID: "mk-1", Key: key})
	t.Cleanup(mkc.Close)
	return mkc
}

func newSecretKeyManager(t *testing.T) (SecretKeyManager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewSecretKeyManager(
		store,
		store.SecretKeys(),
		cryptoService.NewKeyManager(cryptoService.NewAEADManager()),
		newMasterKeyChain(t),
		cryptoDomain.AESGCM,
	), store
}

func TestSecretKeyManager_Current(t *testing.T) {
	ctx := context.Background()

	t.Run("creates version 1 lazily", func(t *testing.T) {
		skm, store := newSecretKeyManager(t)

		_, err := store.SecretKeys().GetCurrent(ctx, "owner")
		require.ErrorIs(t, err, cryptoDomain.ErrSecretKeyNotFound)

		first, err := skm.Current(ctx, "owner")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), first.Version)
		assert.Len(t, first.Material, cryptoDomain.KeySize)

		again, err := skm.Current(ctx, "owner")
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	})

	t.Run("concurrent first use yields one key", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)

		keys := make([]*cryptoDomain.SecretKey, 16)
		var wg sync.WaitGroup
		for i := range keys {
			wg.Go(func() {
				key, err := skm.Current(ctx, "owner")
				assert.NoError(t, err)
				keys[i] = key
			})
		}
		wg.Wait()

		for _, key := range keys[1:] {
			assert.True(t, keys[0].Equal(key))
		}
	})

	t.Run("owners are independent", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)
		a, err := skm.Current(ctx, "owner-a")
		require.NoError(t, err)
		b, err := skm.Current(ctx, "owner-b")
		require.NoError(t, err)
		assert.NotEqual(t, a.Material, b.Material)
	})
}

func TestSecretKeyManager_Rotate(t *testing.T) {
	ctx := context.Background()
	skm, _ := newSecretKeyManager(t)

	v1, err := skm.Current(ctx, "owner")
	require.NoError(t, err)

	v2, err := skm.Rotate(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, v1.Version+1, v2.Version)
	assert.NotEqual(t, v1.Material, v2.Material)

	current, err := skm.Current(ctx, "owner")
	require.NoError(t, err)
	assert.True(t, v2.Equal(current))

	old, err := skm.Get(ctx, "owner", 1)
	require.NoError(t, err)
	assert.True(t, v1.Equal(old), "previous version stays retrievable")

	_, err = skm.Rotate(ctx, "nobody")
	assert.ErrorIs(t, err, cryptoDomain.ErrSecretKeyNotFound)
}

func TestSecretKeyManager_CurrentVersion(t *testing.T) {
	ctx := context.Background()
	skm, _ := newSecretKeyManager(t)

	_, err := skm.CurrentVersion(ctx, "owner")
	assert.ErrorIs(t, err, cryptoDomain.ErrSecretKeyNotFound)

	_, err = skm.Current(ctx, "owner")
	require.NoError(t, err)
	_, err = skm.Rotate(ctx, "owner")
	require.NoError(t, err)

	version, err := skm.CurrentVersion(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
}

func TestSecretKeyManager_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("compare and swap on the previous version", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)
		_, err := skm.Current(ctx, "owner")
		require.NoError(t, err)

		a, err := skm.Next(ctx, "owner")
		require.NoError(t, err)
		b, err := skm.Next(ctx, "owner")
		require.NoError(t, err)
		require.Equal(t, a.Version, b.Version)

		require.NoError(t, skm.Store(ctx, a))
		assert.ErrorIs(t, skm.Store(ctx, b), cryptoDomain.ErrKeyVersionConflict)

		current, err := skm.Current(ctx, "owner")
		require.NoError(t, err)
		assert.True(t, a.Equal(current))
	})

	t.Run("next does not persist", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)
		_, err := skm.Current(ctx, "owner")
		require.NoError(t, err)

		_, err = skm.Next(ctx, "owner")
		require.NoError(t, err)

		current, err := skm.Current(ctx, "owner")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), current.Version)
	})

	t.Run("rejects skipped versions", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)
		_, err := skm.Current(ctx, "owner")
		require.NoError(t, err)

		next, err := skm.Next(ctx, "owner")
		require.NoError(t, err)
		next.Version = 3
		assert.ErrorIs(t, skm.Store(ctx, next), cryptoDomain.ErrKeyVersionConflict)

		next.Version = 0
		assert.ErrorIs(t, skm.Store(ctx, next), cryptoDomain.ErrKeyVersionConflict)
	})

	t.Run("concurrent rotations never double increment", func(t *testing.T) {
		skm, _ := newSecretKeyManager(t)
		_, err := skm.Current(ctx, "owner")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for range 8 {
			wg.Go(func() {
				next, err := skm.Next(ctx, "owner")
				if !assert.NoError(t, err) {
					return
				}
				if skm.Store(ctx, next) == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		current, err := skm.Current(ctx, "owner")
		require.NoError(t, err)
		assert.Equal(t, uint64(1+succeeded), current.Version)
		assert.GreaterOrEqual(t, succeeded, 1)
	})
}

func TestSecretKeyManager_Prune(t *testing.T) {
	ctx := context.Background()
	skm, _ := newSecretKeyManager(t)

	_, err := skm.Current(ctx, "owner")
	require.NoError(t, err)
	_, err = skm.Rotate(ctx, "owner")
	require.NoError(t, err)
	v3, err := skm.Rotate(ctx, "owner")
	require.NoError(t, err)

	pruned, err := skm.Prune(ctx, "owner", v3.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	_, err = skm.Get(ctx, "owner", 1)
	assert.ErrorIs(t, err, cryptoDomain.ErrSecretKeyNotFound)
	_, err = skm.Get(ctx, "owner", 3)
	assert.NoError(t, err)
}
