package usecase

import (
	"context"
	"errors"
	"fmt"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

type keyPairUseCase struct {
	repo           KeyPairRepository
	keyManager     cryptoService.KeyManager
	proofVerifier  ProofVerifier
	masterKeyChain *cryptoDomain.MasterKeyChain
	algorithm      cryptoDomain.Algorithm
}

// NewKeyPairStore creates a KeyPairStore. Private halves are sealed with alg under the
// chain's active master key.
func NewKeyPairStore(
	repo KeyPairRepository,
	keyManager cryptoService.KeyManager,
	proofVerifier ProofVerifier,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) KeyPairStore {
	return &keyPairUseCase{
		repo:           repo,
		keyManager:     keyManager,
		proofVerifier:  proofVerifier,
		masterKeyChain: masterKeyChain,
		algorithm:      alg,
	}
}

func (k *keyPairUseCase) Generate(ctx context.Context, address string) (cryptoDomain.PublicKeys, error) {
	masterKey, ok := k.masterKeyChain.Active()
	if !ok {
		return cryptoDomain.PublicKeys{}, cryptoDomain.ErrMasterKeyNotFound
	}

	kp, err := k.keyManager.GenerateKeyPair(address, k.algorithm, masterKey)
	if err != nil {
		return cryptoDomain.PublicKeys{}, err
	}
	defer kp.Close()

	sealed := *kp
	sealed.BoxPrivateKey = [32]byte{}
	sealed.SigningPrivateKey = nil
	if err := k.repo.Create(ctx, &sealed); err != nil {
		return cryptoDomain.PublicKeys{}, err
	}
	return kp.Public(), nil
}

func (k *keyPairUseCase) PublicKeys(ctx context.Context, address string) (cryptoDomain.PublicKeys, error) {
	kp, err := k.repo.Get(ctx, address)
	if err != nil {
		return cryptoDomain.PublicKeys{}, err
	}
	return kp.Public(), nil
}

func (k *keyPairUseCase) Retrieve(
	ctx context.Context,
	proof identityDomain.Proof,
) (*cryptoDomain.KeyPair, error) {
	if err := k.proofVerifier.Verify(ctx, proof); err != nil {
		if errors.Is(err, cryptoDomain.ErrKeyRetrieval) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKeyRetrieval, err)
	}

	kp, err := k.repo.Get(ctx, proof.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKeyRetrieval, err)
	}

	masterKey, ok := k.masterKeyChain.Get(kp.MasterKeyID)
	if !ok {
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKeyRetrieval, cryptoDomain.ErrMasterKeyNotFound)
	}
	if err := k.keyManager.UnsealKeyPair(kp, masterKey); err != nil {
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKeyRetrieval, err)
	}
	return kp, nil
}
