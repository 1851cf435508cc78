package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/spf13/cobra"
)

var (
	compilePatterns string
	compileInclude  string
	compileExclude  string
	compileOut      string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a pattern set into a database file",
	Long:  "Compile every pattern of a pattern set into one database and save it for later scans",
	Args:  cobra.NoArgs,
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compilePatterns, "patterns", "", "Pattern-set file or directory")
	compileCmd.Flags().StringVar(&compileInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	compileCmd.Flags().StringVar(&compileExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	compileCmd.Flags().StringVar(&compileOut, "out", "patterns.hsdb", "Output database path")
}

func runCompile(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(compilePatterns, compileInclude, compileExclude)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}

	db, closeCache, err := compileRules(rules)
	if err != nil {
		return err
	}
	defer closeCache()
	defer db.Close()

	f, err := os.Create(compileOut)
	if err != nil {
		return fmt.Errorf("creating %s: %w", compileOut, err)
	}
	if err := db.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("saving database: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", compileOut, err)
	}

	size, _ := db.Size()
	slog.Info("compiled database", "patterns", db.Len(), "engine", db.Engine().Name(), "bytes", size, "out", compileOut)
	fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d patterns with %s engine to %s\n", db.Len(), db.Engine().Name(), compileOut)
	return nil
}

// compileRules compiles rules with the engine and cache selected on the
// command line.
func compileRules(rules []*rule.Rule) (*hs.Database, func(), error) {
	exprs, err := rule.Expressions(rules)
	if err != nil {
		return nil, nil, err
	}

	opts, closeCache, err := hsOptions()
	if err != nil {
		return nil, nil, err
	}

	db, err := hs.Compile(exprs, opts...)
	if err != nil {
		closeCache()
		return nil, nil, fmt.Errorf("compiling patterns: %w", err)
	}
	return db, closeCache, nil
}
