package usecase

import (
	"context"
	"errors"
	"fmt"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	"github.com/allisson/recordvault/internal/database"
)

type secretKeyUseCase struct {
	txManager      database.TxManager
	repo           SecretKeyRepository
	keyManager     cryptoService.KeyManager
	masterKeyChain *cryptoDomain.MasterKeyChain
	algorithm      cryptoDomain.Algorithm
}

// NewSecretKeyManager creates a SecretKeyManager. New keys use alg and are sealed with the
// chain's active master key.
func NewSecretKeyManager(
	txManager database.TxManager,
	repo SecretKeyRepository,
	keyManager cryptoService.KeyManager,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) SecretKeyManager {
	return &secretKeyUseCase{
		txManager:      txManager,
		repo:           repo,
		keyManager:     keyManager,
		masterKeyChain: masterKeyChain,
		algorithm:      alg,
	}
}

func (s *secretKeyUseCase) unseal(key *cryptoDomain.SecretKey) (*cryptoDomain.SecretKey, error) {
	masterKey, ok := s.masterKeyChain.Get(key.MasterKeyID)
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}
	if err := s.keyManager.UnsealSecretKey(key, masterKey); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *secretKeyUseCase) generate(ownerID string, version uint64) (*cryptoDomain.SecretKey, error) {
	masterKey, ok := s.masterKeyChain.Active()
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}
	return s.keyManager.GenerateSecretKey(ownerID, version, s.algorithm, masterKey)
}

func (s *secretKeyUseCase) Current(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error) {
	key, err := s.repo.GetCurrent(ctx, ownerID)
	if err == nil {
		return s.unseal(key)
	}
	if !errors.Is(err, cryptoDomain.ErrSecretKeyNotFound) {
		return nil, err
	}

	first, err := s.generate(ownerID, 1)
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, first); err != nil {
		first.Close()
		// Another request created version 1 first; use theirs.
		if errors.Is(err, cryptoDomain.ErrKeyVersionConflict) {
			key, err := s.repo.GetCurrent(ctx, ownerID)
			if err != nil {
				return nil, err
			}
			return s.unseal(key)
		}
		return nil, err
	}
	return first, nil
}

func (s *secretKeyUseCase) CurrentVersion(ctx context.Context, ownerID string) (uint64, error) {
	key, err := s.repo.GetCurrent(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return key.Version, nil
}

func (s *secretKeyUseCase) Get(
	ctx context.Context,
	ownerID string,
	version uint64,
) (*cryptoDomain.SecretKey, error) {
	key, err := s.repo.Get(ctx, ownerID, version)
	if err != nil {
		return nil, err
	}
	return s.unseal(key)
}

func (s *secretKeyUseCase) Next(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error) {
	current, err := s.repo.GetCurrent(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.generate(ownerID, current.Version+1)
}

func (s *secretKeyUseCase) Store(ctx context.Context, key *cryptoDomain.SecretKey) error {
	if key.Version == 0 {
		return fmt.Errorf("%w: version must start at 1", cryptoDomain.ErrKeyVersionConflict)
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetCurrent(ctx, key.OwnerID)
		switch {
		case errors.Is(err, cryptoDomain.ErrSecretKeyNotFound):
			if key.Version != 1 {
				return fmt.Errorf("%w: owner has no key, got version %d",
					cryptoDomain.ErrKeyVersionConflict, key.Version)
			}
		case err != nil:
			return err
		case current.Version != key.Version-1:
			return fmt.Errorf("%w: expected current version %d, found %d",
				cryptoDomain.ErrKeyVersionConflict, key.Version-1, current.Version)
		}

		return s.repo.Create(ctx, key.Sealed())
	})
}

func (s *secretKeyUseCase) Rotate(ctx context.Context, ownerID string) (*cryptoDomain.SecretKey, error) {
	next, err := s.Next(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, next); err != nil {
		next.Close()
		return nil, err
	}
	return next, nil
}

func (s *secretKeyUseCase) Prune(ctx context.Context, ownerID string, keepFrom uint64) (int64, error) {
	return s.repo.DeleteBelow(ctx, ownerID, keepFrom)
}
