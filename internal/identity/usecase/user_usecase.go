package usecase

import (
	"context"
	"crypto/ed25519"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/recordvault/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/recordvault/internal/crypto/usecase"
	"github.com/allisson/recordvault/internal/database"
	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	appValidation "github.com/allisson/recordvault/internal/validation"
)

type userUseCase struct {
	txManager database.TxManager
	users     UserRepository
	keyPairs  cryptoUseCase.KeyPairStore
}

// NewUserUseCase creates a UserUseCase.
func NewUserUseCase(
	txManager database.TxManager,
	users UserRepository,
	keyPairs cryptoUseCase.KeyPairStore,
) UserUseCase {
	return &userUseCase{
		txManager: txManager,
		users:     users,
		keyPairs:  keyPairs,
	}
}

func validateRegisterInput(input RegisterInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Address,
			validation.Required.Error("address is required"),
			appValidation.Address,
		),
		validation.Field(&input.Role,
			validation.Required.Error("role is required"),
			validation.By(func(any) error {
				if !input.Role.Valid() {
					return validation.NewError("validation_role", "must be admin, grantee or owner")
				}
				return nil
			}),
		),
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&input.Email,
			appValidation.Email,
			validation.Length(5, 255),
		),
		validation.Field(&input.IdentityPublicKey,
			validation.Required.Error("identity public key is required"),
			validation.Length(ed25519.PublicKeySize, ed25519.PublicKeySize),
		),
	)
	return appValidation.WrapValidationError(err)
}

func validateUpdateInput(input UpdateInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&input.Email,
			appValidation.Email,
			validation.Length(5, 255),
		),
	)
	return appValidation.WrapValidationError(err)
}

func (u *userUseCase) register(
	ctx context.Context,
	createdBy string,
	input RegisterInput,
) (*identityDomain.Profile, error) {
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	user := &identityDomain.User{
		Address:           input.Address,
		Role:              input.Role,
		Name:              strings.TrimSpace(input.Name),
		Email:             input.Email,
		IdentityPublicKey: input.IdentityPublicKey,
		CreatedAt:         time.Now().UTC(),
		CreatedBy:         createdBy,
	}

	var keys cryptoDomain.PublicKeys
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := u.users.Create(ctx, user); err != nil {
			return err
		}
		var err error
		keys, err = u.keyPairs.Generate(ctx, user.Address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &identityDomain.Profile{User: user, Keys: keys}, nil
}

func (u *userUseCase) Register(
	ctx context.Context,
	actor *identityDomain.Session,
	input RegisterInput,
) (*identityDomain.Profile, error) {
	if actor == nil || !actor.Role().CanRegister(input.Role) {
		return nil, identityDomain.ErrRegistrationNotAllowed
	}
	return u.register(ctx, actor.Address(), input)
}

func (u *userUseCase) Bootstrap(ctx context.Context, input RegisterInput) (*identityDomain.Profile, error) {
	if input.Role != identityDomain.RoleAdmin {
		return nil, identityDomain.ErrRegistrationNotAllowed
	}
	return u.register(ctx, "", input)
}

func (u *userUseCase) Get(ctx context.Context, address string) (*identityDomain.Profile, error) {
	user, err := u.users.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	keys, err := u.keyPairs.PublicKeys(ctx, address)
	if err != nil {
		return nil, err
	}
	return &identityDomain.Profile{User: user, Keys: keys}, nil
}

func (u *userUseCase) List(
	ctx context.Context,
	actor *identityDomain.Session,
	role identityDomain.Role,
	offset, limit int,
) ([]*identityDomain.User, error) {
	if _, err := identityDomain.Authorize(actor.Principal(), identityDomain.ActionListUsers, ""); err != nil {
		return nil, err
	}
	if role != 0 && !role.Valid() {
		return nil, identityDomain.ErrInvalidRole
	}
	return u.users.List(ctx, role, offset, limit)
}

func (u *userUseCase) Stats(
	ctx context.Context,
	actor *identityDomain.Session,
) (map[identityDomain.Role]int64, error) {
	if _, err := identityDomain.Authorize(actor.Principal(), identityDomain.ActionListUsers, ""); err != nil {
		return nil, err
	}
	return u.users.CountByRole(ctx)
}

func (u *userUseCase) ListGrantees(
	ctx context.Context,
	actor *identityDomain.Session,
	offset, limit int,
) ([]*identityDomain.Profile, error) {
	if _, err := identityDomain.Authorize(actor.Principal(), identityDomain.ActionListGrantees, ""); err != nil {
		return nil, err
	}
	users, err := u.users.List(ctx, identityDomain.RoleGrantee, offset, limit)
	if err != nil {
		return nil, err
	}
	profiles := make([]*identityDomain.Profile, 0, len(users))
	for _, user := range users {
		keys, err := u.keyPairs.PublicKeys(ctx, user.Address)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, &identityDomain.Profile{User: user, Keys: keys})
	}
	return profiles, nil
}

func (u *userUseCase) Update(
	ctx context.Context,
	actor *identityDomain.Session,
	input UpdateInput,
) (*identityDomain.Profile, error) {
	if actor.Principal() == nil {
		return nil, identityDomain.ErrForbiddenAction
	}
	if err := validateUpdateInput(input); err != nil {
		return nil, err
	}

	var user *identityDomain.User
	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = u.users.Get(ctx, actor.Address())
		if err != nil {
			return err
		}
		user.Name = strings.TrimSpace(input.Name)
		user.Email = input.Email
		return u.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	keys, err := u.keyPairs.PublicKeys(ctx, user.Address)
	if err != nil {
		return nil, err
	}
	return &identityDomain.Profile{User: user, Keys: keys}, nil
}
