package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildDetails is what the version command prints.
type buildDetails struct {
	Version   string
	Commit    string
	Date      string
	Modified  bool
	Module    string
	GoVersion string
}

// readBuildDetails merges ldflags values with the embedded build info.
// ldflags win; missing values fall back to "(devel)" or "unknown".
func readBuildDetails(info *debug.BuildInfo) buildDetails {
	d := buildDetails{
		Version:   version,
		Commit:    commit,
		Date:      date,
		Module:    "github.com/nao1215/corpuscrawl",
		GoVersion: runtime.Version(),
	}

	if info != nil {
		if d.Version == "" {
			d.Version = info.Main.Version
		}
		if info.Main.Path != "" {
			d.Module = info.Main.Path
		}
		if info.GoVersion != "" {
			d.GoVersion = info.GoVersion
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if d.Commit == "" {
					d.Commit = setting.Value
				}
			case "vcs.time":
				if d.Date == "" {
					d.Date = setting.Value
				}
			case "vcs.modified":
				d.Modified = setting.Value == "true"
			}
		}
	}

	if len(d.Commit) > 7 {
		d.Commit = d.Commit[:7]
	}
	if d.Version == "" {
		d.Version = "(devel)"
	}
	if d.Commit == "" {
		d.Commit = "unknown"
	}
	if d.Date == "" {
		d.Date = "unknown"
	}
	return d
}

// currentBuildDetails reads the build info of the running binary.
func currentBuildDetails() buildDetails {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		info = nil
	}
	return readBuildDetails(info)
}

// getVersion returns the version stamped into reports and run history.
func getVersion() string {
	return currentBuildDetails().Version
}

// printVersion writes the build details to w.
func printVersion(w io.Writer, d buildDetails) {
	commitLine := d.Commit
	if d.Modified {
		commitLine += " (dirty)"
	}
	fmt.Fprintf(w, "corpuscrawl version %s\n", d.Version)
	fmt.Fprintf(w, "  commit: %s\n", commitLine)
	fmt.Fprintf(w, "  built:  %s\n", d.Date)
	fmt.Fprintf(w, "  module: %s\n", d.Module)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", d.GoVersion, runtime.GOOS, runtime.GOARCH)
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash, build date, module path and Go toolchain
of corpuscrawl.`,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout(), currentBuildDetails())
		},
	}
}
