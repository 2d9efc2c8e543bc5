package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	v1 "github.com/packship/packship/apis/v1"
	"github.com/packship/packship/internal/runner"
	"github.com/packship/packship/internal/transfer"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const defaultTargetsFile = "packship.yaml"

// targetFlags select a destination either by name from a targets file or
// ad hoc from the command line.
func targetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "Name of the target in the targets file",
		},
		&cli.StringFlag{
			Name:  "targets",
			Value: defaultTargetsFile,
			Usage: "Targets file",
		},
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the targets file (can be repeated)",
		},
		&cli.StringFlag{
			Name:  "method",
			Usage: "Ad hoc transfer method (copy, sync, session, s3)",
		},
		&cli.StringFlag{
			Name:  "user",
			Usage: "Remote user for ad hoc copy, sync and session transfers",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "Remote host for ad hoc copy, sync and session transfers",
		},
		&cli.StringFlag{
			Name:  "remote-path",
			Usage: "Remote directory for ad hoc copy, sync and session transfers",
		},
		&cli.StringFlag{
			Name:  "bucket",
			Usage: "Bucket for ad hoc s3 transfers",
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Key prefix for ad hoc s3 transfers",
		},
		&cli.StringFlag{
			Name:  "region",
			Usage: "Region for ad hoc s3 transfers",
		},
		&cli.BoolFlag{
			Name:  "compress",
			Usage: "Compress data in transit (sync only)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Abort the transfer after this long (0 means no limit)",
		},
	}
}

var transferCommand = &cli.Command{
	Name:  "transfer",
	Usage: "Send a file or directory to a remote destination",
	Flags: targetFlags(),
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "path",
			UsageText: "The file or directory to send",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		localPath := command.StringArg("path")
		if localPath == "" {
			return fmt.Errorf("no path provided")
		}

		target, ok, err := resolveTarget(ctx, command)
		if err != nil {
			return err
		}
		if !ok {
			if !isInteractive(ctx) {
				return fmt.Errorf("no target selected: use --target or --method")
			}
			target, err = promptTarget(os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
		}

		return ship(ctx, target, localPath)
	},
}

// resolveTarget returns the target selected by flags. ok is false when no
// target was selected at all.
func resolveTarget(ctx context.Context, command *cli.Command) (target v1.Target, ok bool, err error) {
	if name := command.String("target"); name != "" {
		variables, err := runner.BuildVariables(time.Now(), command.StringSlice("allowed-env"))
		if err != nil {
			return v1.Target{}, false, fmt.Errorf("failed to build variables: %w", err)
		}

		file, err := runner.LoadTargets(do.MustInvoke[afero.Fs](getInjector(ctx)), command.String("targets"), variables)
		if err != nil {
			return v1.Target{}, false, fmt.Errorf("failed to load targets from '%s': %w", command.String("targets"), err)
		}

		target, err = runner.FindTarget(file, name)
		if err != nil {
			return v1.Target{}, false, err
		}
		return target, true, nil
	}

	method := command.String("method")
	if method == "" {
		return v1.Target{}, false, nil
	}

	target = v1.Target{
		Name:     method,
		Method:   method,
		Compress: command.Bool("compress"),
	}
	if timeout := command.Duration("timeout"); timeout > 0 {
		target.Timeout = lo.ToPtr(timeout.String())
	}
	if method == string(transfer.MethodS3) {
		target.S3 = &v1.S3Target{
			Bucket: command.String("bucket"),
			Prefix: command.String("prefix"),
			Region: command.String("region"),
		}
	} else {
		target.SSH = &v1.SSHTarget{
			User: command.String("user"),
			Host: command.String("host"),
			Path: command.String("remote-path"),
		}
	}

	if err := runner.ValidateTarget(target); err != nil {
		return v1.Target{}, false, formatValidationError(err)
	}
	return target, true, nil
}

// ship sends localPath to target and prints install instructions when the
// transfer tool is missing.
func ship(ctx context.Context, target v1.Target, localPath string) error {
	logger := getLogger(ctx).With(zap.String("target", target.Name), zap.String("path", localPath))
	registry := do.MustInvoke[*transfer.Registry](getInjector(ctx))

	transferrer, err := runner.NewTransferrer(ctx, registry, target)
	if err != nil {
		return err
	}

	logger.Info("starting transfer", zap.String("transfer", transferrer.Name()))
	if err := transferrer.Transfer(ctx, localPath); err != nil {
		var missing *transfer.MissingToolError
		if errors.As(err, &missing) {
			fmt.Fprint(os.Stderr, missing.Guide())
		}
		return fmt.Errorf("failed to transfer '%s' to %s: %w", localPath, transferrer.Name(), err)
	}

	logger.Info("transfer finished")
	fmt.Printf("✓ Sent '%s' to %s\n", localPath, transferrer.Name())
	return nil
}
