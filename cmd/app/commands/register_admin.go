package commands

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	identityDomain "github.com/allisson/recordvault/internal/identity/domain"
	identityUseCase "github.com/allisson/recordvault/internal/identity/usecase"
)

type registeredUserOutput struct {
	Address          string `json:"address"`
	Role             string `json:"role"`
	Name             string `json:"name"`
	BoxPublicKey     string `json:"box_public_key"`
	SigningPublicKey string `json:"signing_public_key"`
}

// RunRegisterAdmin registers an administrator without a session. It is how the first
// admin of a fresh deployment is created.
func RunRegisterAdmin(
	ctx context.Context,
	userUseCase identityUseCase.UserUseCase,
	logger *slog.Logger,
	writer io.Writer,
	address, name, email, publicKey, format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	identityKey, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("invalid identity public key: %w", err)
	}

	profile, err := userUseCase.Bootstrap(ctx, identityUseCase.RegisterInput{
		Address:           address,
		Role:              identityDomain.RoleAdmin,
		Name:              name,
		Email:             email,
		IdentityPublicKey: ed25519.PublicKey(identityKey),
	})
	if err != nil {
		return fmt.Errorf("failed to register admin: %w", err)
	}

	logger.Info("admin registered", slog.String("address", profile.User.Address))

	output := registeredUserOutput{
		Address:          profile.User.Address,
		Role:             profile.User.Role.String(),
		Name:             profile.User.Name,
		BoxPublicKey:     base64.StdEncoding.EncodeToString(profile.Keys.BoxPublicKey[:]),
		SigningPublicKey: base64.StdEncoding.EncodeToString(profile.Keys.SigningPublicKey),
	}

	if format == "json" {
		return outputJSON(writer, output)
	}

	_, _ = fmt.Fprintln(writer, "Admin registered successfully!")
	_, _ = fmt.Fprintf(writer, "Address: %s\n", output.Address)
	_, _ = fmt.Fprintf(writer, "Name: %s\n", output.Name)
	_, _ = fmt.Fprintf(writer, "Box public key: %s\n", output.BoxPublicKey)
	_, _ = fmt.Fprintf(writer, "Signing public key: %s\n", output.SigningPublicKey)
	return nil
}
