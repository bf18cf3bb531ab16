package usecase

import (
	"context"
	"errors"
	"fmt"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	"github.com/allisson/recordvault/internal/database"
	grantDomain "github.com/allisson/recordvault/internal/grant/domain"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
)

type grantUseCase struct {
	txManager  database.TxManager
	registry   AccessGrantRegistry
	users      UserLookup
	secretKeys cryptoUseCase.SecretKeyManager
	keyPairs   cryptoUseCase.KeyPairStore
	wrapper    cryptoService.KeyWrapper
}

// NewGrantUseCase creates a GrantUseCase.
func NewGrantUseCase(
	txManager database.TxManager,
	registry AccessGrantRegistry,
	users UserLookup,
	secretKeys cryptoUseCase.SecretKeyManager,
	keyPairs cryptoUseCase.KeyPairStore,
	wrapper cryptoService.KeyWrapper,
) GrantUseCase {
	return &grantUseCase{
		txManager:  txManager,
		registry:   registry,
		users:      users,
		secretKeys: secretKeys,
		keyPairs:   keyPairs,
		wrapper:    wrapper,
	}
}

func (g *grantUseCase) eligibleGrantee(ctx context.Context, granteeID string) error {
	user, err := g.users.Get(ctx, granteeID)
	if err != nil {
		if errors.Is(err, identityDomain.ErrUserNotFound) {
			return fmt.Errorf("%w: %s is not registered", grantDomain.ErrGranteeNotEligible, granteeID)
		}
		return err
	}
	if user.Role != identityDomain.RoleGrantee {
		return fmt.Errorf("%w: %s has role %s", grantDomain.ErrGranteeNotEligible, granteeID, user.Role)
	}
	return nil
}

func (g *grantUseCase) Grant(
	ctx context.Context,
	session *identityDomain.Session,
	granteeID string,
) (*grantDomain.AccessGrant, error) {
	if _, err := identityDomain.Authorize(
		session.Principal(),
		identityDomain.ActionGrantAccess,
		session.Address(),
	); err != nil {
		return nil, err
	}
	ownerID := session.Address()

	if err := g.eligibleGrantee(ctx, granteeID); err != nil {
		return nil, err
	}
	pub, err := g.keyPairs.PublicKeys(ctx, granteeID)
	if err != nil {
		return nil, err
	}

	key, err := g.secretKeys.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	wrapped, err := g.wrapper.Wrap(key, &pub.BoxPublicKey)
	if err != nil {
		return nil, err
	}
	grant := &grantDomain.AccessGrant{
		OwnerID:    ownerID,
		GranteeID:  granteeID,
		WrappedKey: wrapped,
		KeyVersion: key.Version,
	}

	err = g.txManager.WithTx(ctx, func(ctx context.Context) error {
		current, err := g.secretKeys.CurrentVersion(ctx, ownerID)
		if err != nil {
			return err
		}
		if current != key.Version {
			return fmt.Errorf("%w: wrapped version %d, current is %d",
				cryptoDomain.ErrKeyVersionConflict, key.Version, current)
		}
		return g.registry.Grant(ctx, grant)
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (g *grantUseCase) List(
	ctx context.Context,
	session *identityDomain.Session,
) ([]*grantDomain.AccessGrant, error) {
	if _, err := identityDomain.Authorize(
		session.Principal(),
		identityDomain.ActionListGrants,
		session.Address(),
	); err != nil {
		return nil, err
	}
	return g.registry.ListGrants(ctx, session.Address())
}

func (g *grantUseCase) ListGrantedOwners(ctx context.Context, session *identityDomain.Session) ([]string, error) {
	if _, err := identityDomain.Authorize(
		session.Principal(),
		identityDomain.ActionListGrantedOwners,
		session.Address(),
	); err != nil {
		return nil, err
	}
	return g.registry.ListGrantedOwners(ctx, session.Address())
}
