package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vitalvas/svcauth/config"
)

type app struct {
	configPath string
	logLevel   string

	cfg config.Config
	log *logrus.Logger
}

func (a *app) before(_ *cli.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	log, err := cfg.Log.Logger()
	if err != nil {
		return err
	}

	log.SetOutput(os.Stderr)

	a.cfg = cfg
	a.log = log

	return nil
}

func newApp() *cli.App {
	a := &app{}

	return &cli.App{
		Name:  "svcauth",
		Usage: "mutually authenticated service-to-service HTTP calls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to the YAML configuration file",
				EnvVars:     []string{config.EnvPrefix + "CONFIG"},
				Destination: &a.configPath,
			},
			&cli.StringFlag{
				Name:        "log",
				Usage:       "logging level, overrides log.level",
				Destination: &a.logLevel,
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			keygenCommand(),
			a.serveCommand(),
			a.callCommand(),
			a.registryCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
