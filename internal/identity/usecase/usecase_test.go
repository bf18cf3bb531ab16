package usecase

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityService "github.com/allisson/recordvault/internal/identity/service"
	"github.com/allisson/recordvault/internal/ledger/memory"
)

type fixture struct {
	store    *memory.Store
	keyPairs cryptoUseCase.KeyPairStore
	users    UserUseCase
	sessions SessionUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	masterKey := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(masterKey)
	require.NoError(t, err)
	mkc := cryptoDomain.NewMasterKeyChain("mk-1", &cryptoDomain.MasterKey{ID: "mk-1", Key: masterKey})
	t.Cleanup(mkc.Close)

	store := memory.NewStore()
	keyPairs := cryptoUseCase.NewKeyPairStore(
		store.KeyPairs(),
		cryptoService.NewKeyManager(cryptoService.NewAEADManager()),
		identityService.NewProofVerifier(store.Users(), 5*time.Minute),
		mkc,
		cryptoDomain.AESGCM,
	)
	return &fixture{
		store:    store,
		keyPairs: keyPairs,
		users:    NewUserUseCase(store, store.Users(), keyPairs),
		sessions: NewSessionUseCase(store.Users(), keyPairs),
	}
}

type identity struct {
	address string
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

func newIdentity(t *testing.T, address string) identity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return identity{address: address, private: priv, public: pub}
}

func (i identity) input(role identityDomain.Role) RegisterInput {
	return RegisterInput{
		Address:           i.address,
		Role:              role,
		Name:              "user " + i.address,
		IdentityPublicKey: i.public,
	}
}

func (i identity) proof() identityDomain.Proof {
	return identityService.SignProof(i.private, i.address, time.Now())
}
