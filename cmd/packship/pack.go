package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/packship/packship/internal/archive"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"
)

var packCommand = &cli.Command{
	Name:  "pack",
	Usage: "Pack a file or directory into a tar or zip archive",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Value:   string(archive.KindTar),
			Usage:   "Archive kind (tar, zip)",
		},
		&cli.StringFlag{
			Name:    "compression",
			Aliases: []string{"c"},
			Usage:   "Compression (tar: none, gzip, bzip2, xz, zstd; zip: stored, deflated). Defaults to gzip for tar and deflated for zip",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file or directory (defaults to the current directory)",
		},
		&cli.BoolFlag{
			Name:    "overwrite",
			Aliases: []string{"yes", "y"},
			Usage:   "Replace an existing archive without asking",
		},
	}, targetFlags()...),
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      "source",
			UsageText: "The file or directory to pack",
		},
	},
	Action: func(ctx context.Context, command *cli.Command) error {
		req, err := buildRequest(
			command.StringArg("source"),
			command.String("output"),
			command.String("kind"),
			command.String("compression"),
			command.Bool("overwrite"),
		)
		if err != nil {
			return err
		}

		// Resolve the destination before packing so a bad target fails fast.
		target, shipIt, err := resolveTarget(ctx, command)
		if err != nil {
			return err
		}

		writer := do.MustInvoke[*archive.Writer](getInjector(ctx))
		output, err := writer.Write(ctx, req)
		if errors.Is(err, archive.ErrAlreadyExists) && isInteractive(ctx) {
			resolved, resolveErr := writer.Resolve(req)
			if resolveErr != nil {
				return resolveErr
			}
			ok, confirmErr := confirm(os.Stdin, os.Stdout, fmt.Sprintf("'%s' already exists. Overwrite?", resolved))
			if confirmErr != nil {
				return confirmErr
			}
			if !ok {
				return fmt.Errorf("not overwriting '%s'", resolved)
			}
			req.Overwrite = true
			output, err = writer.Write(ctx, req)
		}
		if err != nil {
			return fmt.Errorf("failed to pack '%s': %w", req.Source, err)
		}

		fmt.Printf("✓ Packed '%s' into '%s'\n", req.Source, output)

		if !shipIt {
			return nil
		}
		return ship(ctx, target, output)
	},
}

// buildRequest turns command line values into an archive request. An empty
// compression selects gzip for tar and deflated for zip.
func buildRequest(source, output, kind, compression string, overwrite bool) (archive.Request, error) {
	if source == "" {
		return archive.Request{}, fmt.Errorf("no source provided")
	}

	k, err := archive.ParseKind(kind)
	if err != nil {
		return archive.Request{}, err
	}

	if compression == "" {
		switch k {
		case archive.KindTar:
			compression = string(archive.CompressionGzip)
		case archive.KindZip:
			compression = string(archive.CompressionDeflated)
		}
	}
	c, err := archive.ParseCompression(k, compression)
	if err != nil {
		return archive.Request{}, err
	}

	req := archive.Request{
		Source:      source,
		Output:      output,
		Kind:        k,
		Compression: c,
		Overwrite:   overwrite,
	}
	if err := req.Validate(); err != nil {
		return archive.Request{}, err
	}
	return req, nil
}
