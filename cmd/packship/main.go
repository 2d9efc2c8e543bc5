package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/packship/packship/internal/runner"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var syncLogger func() error

func main() {
	app := &cli.Command{
		Name:  "packship",
		Usage: "Pack files into tar or zip archives, extract them safely and ship them to remote hosts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error, fatal)",
				Action: func(_ context.Context, _ *cli.Command, level string) error {
					if _, err := zapcore.ParseLevel(level); err != nil {
						return fmt.Errorf("invalid log level %s: %w", level, err)
					}
					return nil
				},
			},
		},
		Commands: []*cli.Command{
			packCommand,
			unpackCommand,
			listCommand,
			transferCommand,
			validateCommand,
			versionCommand,
		},
		Before:         setup,
		ExitErrHandler: exitOnError,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer func() {
		if syncLogger != nil {
			_ = syncLogger()
		}
	}()

	_ = app.Run(ctx, os.Args)
}

// setup builds the logger and the service container shared by every command.
func setup(ctx context.Context, command *cli.Command) (context.Context, error) {
	logger, err := createLogger(command.Bool("debug"), command.String("log-level"))
	if err != nil {
		return nil, err
	}
	syncLogger = logger.Sync

	logger.Debug("logger created", zap.String("log_level", command.String("log-level")))

	ctx = withLogger(ctx, logger)
	ctx = withInjector(ctx, runner.BuildContainer(logger, afero.NewOsFs()))
	return withInteractive(ctx, isInteractiveEnvironment()), nil
}

func exitOnError(ctx context.Context, _ *cli.Command, err error) {
	if err == nil {
		return
	}
	if logger := tryLogger(ctx); logger != nil {
		logger.Fatal("packship failed", zap.Error(err))
	}
	log.Fatalf("packship failed: %v", err)
}
