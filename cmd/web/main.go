package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/markdave123-py/RepoScribe/internal/app"
	"github.com/markdave123-py/RepoScribe/internal/config"
)

const version = "0.1.0"

func main() {
	application := &cli.App{
		Name:    "reposcribe",
		Usage:   "Web front end for repository documentation generation",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := application.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Load environment from `FILE` (repeatable)",
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the HTTP server; overrides PORT",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level; overrides LOG_LEVEL",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.StringSlice("env-file")...)
	if err != nil {
		return err
	}
	if p := c.String("port"); p != "" {
		cfg.Port = p
	}
	if l := c.String("log-level"); l != "" {
		cfg.LogLevel = l
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer application.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- application.Server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return application.Server.Shutdown(shutdownCtx)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
