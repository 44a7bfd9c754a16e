package main

import (
	"fmt"
	"io"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/spf13/cobra"
)

// Set through -ldflags "-X main.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info, _ := rtdebug.ReadBuildInfo()
		printVersion(cmd.OutOrStdout(), info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printVersion falls back to the VCS stamp of the build when the commit
// was not injected at link time.
func printVersion(w io.Writer, info *rtdebug.BuildInfo) {
	commit, built := GitCommit, BuildTime
	if info != nil {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && built == "unknown":
				built = s.Value
			}
		}
	}

	fmt.Fprintf(w, "InvesteAI %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", commit)
	fmt.Fprintf(w, "  Build time: %s\n", built)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
