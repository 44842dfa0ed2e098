package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard/config"
	"github.com/bjaus/switchboard/logging"
)

var lambdaCmd = &cli.Command{
	Name:  "lambda",
	Usage: "Run inside the Lambda runtime",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.String("config"))
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to load config: %w", err), 1)
		}
		logger := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
		defer func() { _ = logger.Sync() }()

		ep := newEntryPoint(cfg, logger.With(zap.String("component", "switchboard")), nil)
		lambda.StartWithOptions(ep.Invoke, lambda.WithContext(ctx))
		return nil
	},
}
