package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityService "github.com/allisson/recordvault/internal/identity/service"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	"github.com/allisson/recordvault/internal/ledger/memory"
)

// Env wires the key hierarchy and identity layer over an in-memory ledger with real
// cryptography. Use case tests build their subject on top of it.
type Env struct {
	Store      *memory.Store
	MasterKeys *cryptoDomain.MasterKeyChain
	Cipher     cryptoService.CipherEngine
	Signatures cryptoService.SignatureEngine
	Wrapper    cryptoService.KeyWrapper
	SecretKeys cryptoUseCase.SecretKeyManager
	KeyPairs   cryptoUseCase.KeyPairStore
	Users      identityUseCase.UserUseCase
	Sessions   identityUseCase.SessionUseCase
}

// NewEnv creates an Env with a fresh random master key.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	masterKey := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(masterKey)
	require.NoError(t, err)
	mkc := cryptoDomain.NewMasterKeyChain("test-mk", &cryptoDomain.MasterKey{ID: "test-mk", Key: masterKey})
	t.Cleanup(mkc.Close)

	store := memory.NewStore()
	aeadManager := cryptoService.NewAEADManager()
	keyManager := cryptoService.NewKeyManager(aeadManager)
	keyPairs := cryptoUseCase.NewKeyPairStore(
		store.KeyPairs(),
		keyManager,
		identityService.NewProofVerifier(store.Users(), 5*time.Minute),
		mkc,
		cryptoDomain.AESGCM,
	)

	return &Env{
		Store:      store,
		MasterKeys: mkc,
		Cipher:     cryptoService.NewCipherEngine(aeadManager),
		Signatures: cryptoService.NewSignatureEngine(),
		Wrapper:    cryptoService.NewKeyWrapper(),
		SecretKeys: cryptoUseCase.NewSecretKeyManager(
			store,
			store.SecretKeys(),
			keyManager,
			mkc,
			cryptoDomain.AESGCM,
		),
		KeyPairs: keyPairs,
		Users:    identityUseCase.NewUserUseCase(store, store.Users(), keyPairs),
		Sessions: identityUseCase.NewSessionUseCase(store.Users(), keyPairs),
	}
}

// Identity is a test user's identity (wallet) key.
type Identity struct {
	Address string
	Role    identityDomain.Role
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Proof signs a fresh identity proof.
func (i Identity) Proof() identityDomain.Proof {
	return identityService.SignProof(i.Private, i.Address, time.Now())
}

// SignRequest sets the identity proof headers on req, bound to its method and path.
func (i Identity) SignRequest(req *http.Request) {
	proof := identityService.SignRequestProof(i.Private, i.Address, req.Method, req.URL.Path, time.Now())
	req.Header.Set("X-Identity-Address", proof.Address)
	req.Header.Set("X-Identity-Issued-At", strconv.FormatInt(proof.IssuedAt.Unix(), 10))
	req.Header.Set("X-Identity-Signature", base64.StdEncoding.EncodeToString(proof.Signature))
}

// Register creates a user with a generated identity key and keypair.
func (e *Env) Register(t *testing.T, address string, role identityDomain.Role) Identity {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	ctx := context.Background()
	err = e.Store.WithTx(ctx, func(ctx context.Context) error {
		if err := e.Store.Users().Create(ctx, &identityDomain.User{
			Address:           address,
			Role:              role,
			Name:              "test " + address,
			IdentityPublicKey: pub,
			CreatedAt:         time.Now().UTC(),
		}); err != nil {
			return err
		}
		_, err := e.KeyPairs.Generate(ctx, address)
		return err
	})
	require.NoError(t, err)

	return Identity{Address: address, Role: role, Private: priv, Public: pub}
}

// Open opens a session for id. The session is closed when the test ends.
func (e *Env) Open(t *testing.T, id Identity) *identityDomain.Session {
	t.Helper()

	session, err := e.Sessions.Open(context.Background(), id.Proof())
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return session
}

// RegisterAndOpen is Register followed by Open.
func (e *Env) RegisterAndOpen(t *testing.T, address string, role identityDomain.Role) *identityDomain.Session {
	t.Helper()
	return e.Open(t, e.Register(t, address, role))
}
