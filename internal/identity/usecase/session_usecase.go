package usecase

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

type sessionUseCase struct {
	users    UserRepository
	keyPairs cryptoUseCase.KeyPairStore
}

// NewSessionUseCase creates a SessionUseCase.
func NewSessionUseCase(users UserRepository, keyPairs cryptoUseCase.KeyPairStore) SessionUseCase {
	return &sessionUseCase{users: users, keyPairs: keyPairs}
}

func (s *sessionUseCase) Open(ctx context.Context, proof identityDomain.Proof) (*identityDomain.Session, error) {
	keys, err := s.keyPairs.Retrieve(ctx, proof)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, proof.Address)
	if err != nil {
		keys.Close()
		return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrKeyRetrieval, err)
	}
	return &identityDomain.Session{User: user, Keys: keys}, nil
}
