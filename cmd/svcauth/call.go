package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/vitalvas/svcauth/client"
)

func (a *app) callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "POST a signed request to an endpoint and print the verified result",
		ArgsUsage: "PATH [ARG...]",
		Description: "PATH is relative to client.endpoint, e.g. users/lookup. Each ARG is " +
			"appended as a further path segment.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "base URL, overrides client.endpoint",
			},
			&cli.StringSliceFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "form field as key=value, repeatable",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("missing PATH", 2)
			}

			if ep := ctx.String("endpoint"); ep != "" {
				a.cfg.Client.Endpoint = ep
			}

			if err := a.cfg.ValidateClient(); err != nil {
				return err
			}

			form, err := parseForm(ctx.StringSlice("data"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			c, err := a.newClient()
			if err != nil {
				return err
			}

			args := make([]any, 0, ctx.NArg()-1)
			for _, arg := range ctx.Args().Tail() {
				args = append(args, arg)
			}

			segments := strings.Split(strings.Trim(ctx.Args().First(), "/"), "/")

			resp, err := c.Endpoint(segments...).Call(ctx.Context, form, args...)
			if err != nil {
				return err
			}

			if !resp.OK() {
				return cli.Exit(fmt.Sprintf("%d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))), 1)
			}

			var out bytes.Buffer
			if err := json.Indent(&out, resp.Body, "", "  "); err != nil {
				out.Reset()
				out.Write(resp.Body)
			}

			out.WriteByte('\n')

			_, err = ctx.App.Writer.Write(out.Bytes())

			return err
		},
	}
}

func (a *app) newClient() (*client.Client, error) {
	cfg := a.cfg.Client

	auth, err := client.NewAuthenticator(client.Config{
		Identity:        cfg.Identity,
		Keys:            cfg.Keys,
		Exempt:          cfg.Exempt,
		ServerPublicKey: cfg.ServerPublicKey,
		Log:             a.log,
	})
	if err != nil {
		return nil, err
	}

	return client.NewClient(client.ClientConfig{
		Endpoint:      cfg.Endpoint,
		Authenticator: auth,
		Timeout:       cfg.Timeout,
	})
}

func parseForm(pairs []string) (url.Values, error) {
	form := url.Values{}

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", pair)
		}

		form.Add(k, v)
	}

	return form, nil
}
