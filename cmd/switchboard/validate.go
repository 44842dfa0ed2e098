package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/bjaus/switchboard/config"
)

var validateCmd = &cli.Command{
	Name:    "validate",
	Aliases: []string{"lint"},
	Usage:   "Validate a configuration file",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.String("config")
		if path == "" && cmd.Args().Len() > 0 {
			path = cmd.Args().Get(0)
		}
		if path == "" {
			return fmt.Errorf("config file path required (use the --config flag, or provide the config file as positional argument)")
		}

		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		w := cmd.Root().Writer
		fmt.Fprintf(w, "Configuration file %s is valid\n\n", path)
		fmt.Fprintf(w, "- Log level: %s\n", cfg.Log.Level)
		fmt.Fprintf(w, "- Allowed origins: %v\n", cfg.HTTP.AllowedOrigins)
		fmt.Fprintf(w, "- CORS domains: %v\n", cfg.HTTP.CORSAllowedDomains)
		fmt.Fprintf(w, "- Batch concurrency: %d\n", cfg.Batch.Concurrency)
		fmt.Fprintf(w, "- Authentication: %t\n", cfg.Auth.Secret != "")
		return nil
	},
}
