// Package dto provides data transfer objects for the user registry endpoints.
package dto

import (
	"crypto/ed25519"
	"encoding/base64"

	validation "github.com/jellydator/validation"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
	customValidation "github.com/allisson/recordvault/internal/validation"
)

// RegisterUserRequest contains the parameters for registering a user.
type RegisterUserRequest struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	// IdentityPublicKey is the base64 Ed25519 key that signs the user's identity proofs.
	IdentityPublicKey string `json:"identity_public_key"`
}

// Validate checks if the register user request is valid.
func (r *RegisterUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Address,
			validation.Required,
			customValidation.Address,
		),
		validation.Field(&r.Role,
			validation.Required,
			validation.In("admin", "grantee", "owner"),
		),
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Email,
			customValidation.Email,
		),
		validation.Field(&r.IdentityPublicKey,
			validation.Required,
			customValidation.Base64Size(ed25519.PublicKeySize),
		),
	)
}

// ToInput converts a validated request into a RegisterInput.
func (r *RegisterUserRequest) ToInput() (identityUseCase.RegisterInput, error) {
	role, err := identityDomain.ParseRole(r.Role)
	if err != nil {
		return identityUseCase.RegisterInput{}, err
	}
	key, err := base64.StdEncoding.DecodeString(r.IdentityPublicKey)
	if err != nil {
		return identityUseCase.RegisterInput{}, err
	}
	return identityUseCase.RegisterInput{
		Address:           r.Address,
		Role:              role,
		Name:              r.Name,
		Email:             r.Email,
		IdentityPublicKey: ed25519.PublicKey(key),
	}, nil
}

// UpdateUserRequest contains the profile fields a user may change on their own account.
type UpdateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate checks if the update user request is valid.
func (r *UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.Email,
			customValidation.Email,
		),
	)
}

// ToInput converts a validated request into an UpdateInput.
func (r *UpdateUserRequest) ToInput() identityUseCase.UpdateInput {
	return identityUseCase.UpdateInput{Name: r.Name, Email: r.Email}
}
