package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"github.com/vitalvas/svcauth/registry"
	"go.uber.org/multierr"
)

func (a *app) registryCommand() *cli.Command {
	return &cli.Command{
		Name:  "registry",
		Usage: "manage the persistent service registry (registry.badger)",
		Before: func(_ *cli.Context) error {
			if a.cfg.Registry.Badger == "" {
				return cli.Exit("registry.badger is not configured", 2)
			}

			return a.cfg.ValidateRegistry()
		},
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "store every record of a services YAML file",
				ArgsUsage: "FILE",
				Action:    a.registryImport,
			},
			{
				Name:   "list",
				Usage:  "list stored identities",
				Action: a.registryList,
			},
			{
				Name:      "remove",
				Usage:     "delete stored identities",
				ArgsUsage: "ID...",
				Action:    a.registryRemove,
			},
		},
	}
}

func (a *app) registryImport(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.Exit("expected exactly one FILE", 2)
	}

	records, err := registry.LoadFile(ctx.Args().First())
	if err != nil {
		return err
	}

	store, err := openBadgerStore(a.cfg.Registry, a.log)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err = store.Put(ctx.Context, rec); err != nil {
			err = fmt.Errorf("%s: %w", rec.ID, err)
			break
		}

		a.log.WithField("service", rec.ID).Info("imported")
	}

	return multierr.Append(err, store.Close())
}

func (a *app) registryList(ctx *cli.Context) error {
	store, err := openBadgerStore(a.cfg.Registry, a.log)
	if err != nil {
		return err
	}

	records, err := store.List(ctx.Context)
	if err != nil {
		return multierr.Append(err, store.Close())
	}

	tw := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tEXEMPT ADDRESS\tPUBLIC KEY")

	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ID, recordMode(rec), dash(rec.ExemptAddress), dash(shorten(rec.Keys.Public)))
	}

	return multierr.Append(tw.Flush(), store.Close())
}

func (a *app) registryRemove(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.Exit("expected at least one ID", 2)
	}

	store, err := openBadgerStore(a.cfg.Registry, a.log)
	if err != nil {
		return err
	}

	var errs error

	for _, id := range ctx.Args().Slice() {
		if err := store.Delete(ctx.Context, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}

		a.log.WithField("service", id).Info("removed")
	}

	return multierr.Append(errs, store.Close())
}

func recordMode(rec registry.ServiceRecord) string {
	switch {
	case rec.ExemptEncryption:
		return "exempt"
	case rec.ResponseKeys != nil:
		return "hardened"
	default:
		return "shared"
	}
}

func shorten(key string) string {
	if len(key) <= 16 {
		return key
	}

	return key[:16] + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
