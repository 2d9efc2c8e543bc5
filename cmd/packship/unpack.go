package main

import (
	"context"
	"fmt"

	"github.com/packship/packship/internal/archive"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var unpackCommand = &cli.Command{
	Name:  "unpack",
	Usage: "Extract an archive after checking that no member escapes the destination",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "archive",
			UsageText: "The archive to extract",
		},
		&cli.StringArg{
			Name:      "dest",
			UsageText: "The destination directory (defaults to the current directory)",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		archivePath := command.StringArg("archive")
		if archivePath == "" {
			return fmt.Errorf("no archive provided")
		}
		dest := command.StringArg("dest")
		if dest == "" {
			dest = "."
		}

		getLogger(ctx).Debug("extracting archive", zap.String("archive", archivePath), zap.String("dest", dest))

		reader := do.MustInvoke[*archive.Reader](getInjector(ctx))
		if err := reader.Extract(ctx, archivePath, dest); err != nil {
			return fmt.Errorf("failed to extract '%s': %w", archivePath, err)
		}

		fmt.Printf("✓ Extracted '%s' into '%s'\n", archivePath, dest)
		return nil
	},
}
