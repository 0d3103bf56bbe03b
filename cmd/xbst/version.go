package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set by -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xbst %s (commit: %s, %s)\n", version, commit, runtime.Version())
		},
	}
}
