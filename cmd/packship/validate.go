package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/packship/packship/internal/runner"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Validate a targets file",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "allowed-env",
			Usage: "Environment variables allowed in the targets file (can be repeated)",
		},
	},
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "targets",
			UsageText: "The targets file to validate (defaults to " + defaultTargetsFile + ")",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		logger := getLogger(ctx)

		filename := command.StringArg("targets")
		if filename == "" {
			filename = defaultTargetsFile
		}

		data, err := afero.ReadFile(do.MustInvoke[afero.Fs](getInjector(ctx)), filename)
		if err != nil {
			return fmt.Errorf("failed to read targets file '%s': %w", filename, err)
		}

		logger = logger.With(zap.String("targets_filename", filename))
		logger.Debug("validating targets file")

		file, err := runner.ParseTargets(data)
		if err != nil {
			fmt.Println(formatValidationError(err))
			return fmt.Errorf("targets file '%s' is invalid", filename)
		}

		variables, err := runner.BuildVariables(time.Now(), command.StringSlice("allowed-env"))
		if err != nil {
			return fmt.Errorf("failed to build variables: %w", err)
		}

		if err := runner.ExpandTemplates(&file, variables); err != nil {
			return fmt.Errorf("failed to expand templates: %w", err)
		}

		for _, target := range file.Targets {
			if _, err := runner.ResolveTargetSpec(target); err != nil {
				return err
			}
		}

		fmt.Printf("✓ Targets file '%s' is valid (%d target(s))\n", filename, len(file.Targets))
		return nil
	},
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("targets file has %d validation error(s):", len(validationErrs)))
		for _, fe := range validationErrs {
			sb.WriteString(fmt.Sprintf("\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag()))
			if fe.Param() != "" {
				sb.WriteString(fmt.Sprintf(" (param: %s)", fe.Param()))
			}
		}
		return errors.New(sb.String())
	}
	return err
}
