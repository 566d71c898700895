// cmd/memetrader/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/config"
	"github.com/rovshanmuradov/memetrader/internal/logger"
)

func main() {
	app := &cli.App{
		Name:      "memetrader",
		Usage:     "automated buy/sell/settle controller",
		UsageText: "memetrader [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (json, yaml or toml); defaults and MEMETRADER_* env when empty",
				EnvVars: []string{"MEMETRADER_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			migrateCommand(),
			cleanupCommand(),
			reconcileCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "\033[31m"+err.Error()+"\033[0m")
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(log.Logger)
	return cfg, log, nil
}
