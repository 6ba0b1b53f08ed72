// Copyright 2024 github.com/ucirello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ucirello-labs/replmuxd/internal/config"
)

func run(args []string) error {
	app := &cli.App{
		Name:  "replmuxd",
		Usage: "persistent-REPL multiplexer daemon",
		Commands: []*cli.Command{
			serveCommand(),
			execCommand(),
		},
	}
	return app.Run(args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "load the command table and start accepting requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "replmux.yaml",
				Usage: "path to the command configuration file",
			},
			&cli.StringFlag{
				Name:  "socket",
				Value: "/run/replmuxd.sock",
				Usage: "Unix-domain socket to bind the HTTP front end to",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug-level structured logging",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	logger, err := newLogger(c.Bool("debug"))
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Install(); err != nil {
		return fmt.Errorf("installing command table: %w", err)
	}

	logger.Info("command table installed", zap.Int("commands", len(cfg.Commands)), zap.String("workdir", cfg.WorkDir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, c.String("socket"), logger)
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
