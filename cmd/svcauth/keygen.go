package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/signing"
	"gopkg.in/yaml.v3"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a P-256 key pair",
		Description: "Without --id prints a bare key pair. With --id prints a services " +
			"document ready for the registry.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "service identity to wrap the key pair in",
			},
			&cli.BoolFlag{
				Name:  "response-keys",
				Usage: "also generate a distinct response signing key pair (requires --id)",
			},
		},
		Action: func(ctx *cli.Context) error {
			kp, err := signing.GenerateKeyPair()
			if err != nil {
				return err
			}

			id := ctx.String("id")
			if id == "" {
				if ctx.Bool("response-keys") {
					return cli.Exit("--response-keys requires --id", 2)
				}

				out, err := yaml.Marshal(kp)
				if err != nil {
					return err
				}

				_, err = ctx.App.Writer.Write(out)

				return err
			}

			rec := registry.ServiceRecord{ID: id, Keys: kp}

			if ctx.Bool("response-keys") {
				responseKeys, err := signing.GenerateKeyPair()
				if err != nil {
					return err
				}

				rec.ResponseKeys = &responseKeys
			}

			if err := rec.Validate(); err != nil {
				return fmt.Errorf("generated record is invalid: %w", err)
			}

			out, err := registry.MarshalRecords([]registry.ServiceRecord{rec})
			if err != nil {
				return err
			}

			_, err = ctx.App.Writer.Write(out)

			return err
		},
	}
}
