package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/praetorian-inc/hsfilter/pkg/engine/hyperscan"
	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version of hsfilter and the match engines compiled in",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hsfilter v%s\n", version)
	fmt.Fprintf(out, "Commit: %s\n", commit)
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Engines: %s\n", strings.Join(availableEngines(), ", "))
	return nil
}

func availableEngines() []string {
	engines := []string{portable.New().Version()}
	if hyperscan.Available() {
		if e, err := hyperscan.New(); err == nil {
			engines = append(engines, e.Name()+" "+e.Version())
		}
	}
	return engines
}
