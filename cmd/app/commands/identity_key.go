package commands

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	identityService "github.com/allisson/recordvault/internal/identity/service"
)

type identityKeyOutput struct {
	PublicKey  string `json:"identity_public_key"`
	PrivateKey string `json:"identity_private_key"`
}

type identityProofOutput struct {
	Address   string `json:"X-Identity-Address"`
	IssuedAt  string `json:"X-Identity-Issued-At"`
	Signature string `json:"X-Identity-Signature"`
}

// RunCreateIdentityKey generates an Ed25519 identity key. The public half is what
// POST /v1/users and register-admin expect; the private half signs identity proofs and
// never leaves the user.
func RunCreateIdentityKey(writer io.Writer, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate identity key: %w", err)
	}
	output := identityKeyOutput{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv.Seed()),
	}
	clear(priv)

	if format == "json" {
		return outputJSON(writer, output)
	}

	_, _ = fmt.Fprintln(writer, "# Identity key")
	_, _ = fmt.Fprintln(writer, "# Register the public key; keep the private key secret")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "IDENTITY_PUBLIC_KEY=\"%s\"\n", output.PublicKey)
	_, _ = fmt.Fprintf(writer, "IDENTITY_PRIVATE_KEY=\"%s\"\n", output.PrivateKey)
	return nil
}

// RunSignIdentityProof signs a proof for address issued at now, bound to one request
// method and path, and prints the request headers that carry it. privateKey is the base64
// seed printed by create-identity-key.
func RunSignIdentityProof(
	writer io.Writer,
	address, method, path, privateKey, format string,
	now time.Time,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if method == "" || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("method and an absolute path are required")
	}

	seed, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return fmt.Errorf("invalid identity private key: %w", err)
	}
	defer clear(seed)
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("invalid identity private key: must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	key := ed25519.NewKeyFromSeed(seed)
	defer clear(key)

	proof := identityService.SignRequestProof(key, address, strings.ToUpper(method), path, now)
	output := identityProofOutput{
		Address:   proof.Address,
		IssuedAt:  strconv.FormatInt(proof.IssuedAt.Unix(), 10),
		Signature: base64.StdEncoding.EncodeToString(proof.Signature),
	}

	if format == "json" {
		return outputJSON(writer, output)
	}

	_, _ = fmt.Fprintf(writer, "X-Identity-Address: %s\n", output.Address)
	_, _ = fmt.Fprintf(writer, "X-Identity-Issued-At: %s\n", output.IssuedAt)
	_, _ = fmt.Fprintf(writer, "X-Identity-Signature: %s\n", output.Signature)
	return nil
}
