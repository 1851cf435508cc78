package main

import (
	"log/slog"

	"github.com/praetorian-inc/hsfilter/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	quiet      bool
	engineName string
	cachePath  string
)

var rootCmd = &cobra.Command{
	Use:   "hsfilter",
	Short: "hsfilter - multi-pattern matching and regex prefiltering",
	Long: `hsfilter compiles sets of regular expressions into a single database and
scans inputs against all of them in one pass.

It can also narrow a large pattern set down to the candidates that could match
an input, leaving exact verification to a backtracking regex engine.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Leveler
		switch {
		case verbose:
			level = slog.LevelDebug
		case quiet:
			level = slog.LevelError
		}
		logging.Init("hsfilter", cmd.ErrOrStderr(), level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&engineName, "engine", "auto", "Match engine: auto, portable, hyperscan")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Compiled database cache: :memory:, *.db, *.sqlite or *.bolt")

	// Add subcommands
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
