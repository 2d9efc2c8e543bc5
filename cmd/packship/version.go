package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

// Build information, filled from debug.ReadBuildInfo at init.
var (
	Version   = "unknown"
	GoVersion = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
	Modified  bool
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(info)
	}
}

func applyBuildInfo(info *debug.BuildInfo) {
	Version = info.Main.Version
	GoVersion = info.GoVersion

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			BuildTime = setting.Value
		case "vcs.modified":
			Modified = setting.Value == "true"
		}
	}
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "packship %s (%s)\n", Version, GoVersion)
	if Commit != "unknown" {
		dirty := ""
		if Modified {
			dirty = ", dirty"
		}
		fmt.Fprintf(out, "commit: %s%s\n", Commit, dirty)
	}
	if BuildTime != "unknown" {
		fmt.Fprintf(out, "built: %s\n", BuildTime)
	}
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(ctx context.Context, command *cli.Command) error {
		printVersion(os.Stdout)
		return nil
	},
}
