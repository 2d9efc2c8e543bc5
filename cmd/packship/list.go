package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/packship/packship/internal/archive"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the members of an archive",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "archive",
			UsageText: "The archive to list",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		archivePath := command.StringArg("archive")
		if archivePath == "" {
			return fmt.Errorf("no archive provided")
		}

		reader := do.MustInvoke[*archive.Reader](getInjector(ctx))
		members, err := reader.List(ctx, archivePath)
		if err != nil {
			return fmt.Errorf("failed to list '%s': %w", archivePath, err)
		}

		return printMembers(os.Stdout, members)
	},
}

func printMembers(out io.Writer, members []archive.Member) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range members {
		name := m.Name
		if m.Linkname != "" {
			name += " -> " + m.Linkname
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.Type, m.Mode, m.Size, name)
	}
	return tw.Flush()
}
