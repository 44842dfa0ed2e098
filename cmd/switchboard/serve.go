package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard/config"
	"github.com/bjaus/switchboard/localhost"
	"github.com/bjaus/switchboard/logging"
	"github.com/bjaus/switchboard/metrics"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Serve the function over HTTP for local development",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "Address to listen on (overrides local.addr)",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.String("config"))
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to load config: %w", err), 1)
		}
		addr := cfg.Local.Addr
		if l := cmd.String("listen"); l != "" {
			addr = l
		}

		logger := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		defer func() { _ = logger.Sync() }()

		collector, err := metrics.New(nil)
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to create metrics: %w", err), 1)
		}

		ep := newEntryPoint(cfg, logger.With(zap.String("component", "switchboard")), collector)
		srv := localhost.New(ep,
			localhost.WithLogger(logger.With(zap.String("component", "localhost"))),
			localhost.WithMetrics(collector.Handler()),
		)
		return srv.ListenAndServe(ctx, addr)
	},
}
