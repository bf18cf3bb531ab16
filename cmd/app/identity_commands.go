package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/recordvault/cmd/app/commands"
	"github.com/allisson/recordvault/internal/app"
	"github.com/allisson/recordvault/internal/config"
)

func getIdentityCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "register-admin",
			Usage: "Register an administrator without a session (bootstraps a fresh deployment)",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "address",
					Aliases:  []string{"a"},
					Required: true,
					Usage:    "Admin address",
				},
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Human-readable name",
				},
				&cli.StringFlag{
					Name:    "email",
					Aliases: []string{"e"},
					Usage:   "Contact email",
				},
				&cli.StringFlag{
					Name:     "public-key",
					Aliases:  []string{"k"},
					Required: true,
					Usage:    "Base64 identity public key from create-identity-key",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				userUseCase, err := container.UserUseCase()
				if err != nil {
					return err
				}

				return commands.RunRegisterAdmin(
					ctx,
					userUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("address"),
					cmd.String("name"),
					cmd.String("email"),
					cmd.String("public-key"),
					cmd.String("format"),
				)
			},
		},
	}
}
