package main

import (
	"context"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/recordvault/cmd/app/commands"
	"github.com/allisson/recordvault/internal/app"
	"github.com/allisson/recordvault/internal/config"
	cryptoService "github.com/allisson/recordvault/internal/crypto/service"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new Master Key that seals owner keys and private keys at rest",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
				&cli.StringFlag{
					Name:  "kms-provider",
					Value: "",
					Usage: "KMS provider (localsecrets, gcpkms, awskms, azurekeyvault, hashivault); omit for a plain key",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateMasterKey(
					ctx,
					cryptoService.NewKMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "create-identity-key",
			Usage: "Generate an Ed25519 identity key for signing identity proofs",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateIdentityKey(commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
		{
			Name:  "sign-identity-proof",
			Usage: "Sign an identity proof for one request and print the headers carrying it",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "address",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Address of the registered user",
				},
				&cli.StringFlag{
					Name:     "method",
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "HTTP method of the request the proof authorizes",
				},
				&cli.StringFlag{
					Name:     "path",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "URL path of the request the proof authorizes, without the query string",
				},
				&cli.StringFlag{
					Name:    "private-key",
					Aliases: []string{"k"},
					Usage:   "Base64 identity private key (defaults to IDENTITY_PRIVATE_KEY)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				privateKey := cmd.String("private-key")
				if privateKey == "" {
					privateKey = os.Getenv("IDENTITY_PRIVATE_KEY")
				}
				return commands.RunSignIdentityProof(
					commands.DefaultIO().Writer,
					cmd.String("address"),
					cmd.String("method"),
					cmd.String("path"),
					privateKey,
					cmd.String("format"),
					time.Now(),
				)
			},
		},
	}
}
