package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/hsfilter/pkg/scanner"
	"github.com/praetorian-inc/hsfilter/pkg/serve"
	"github.com/spf13/cobra"
)

var (
	servePatterns string
	serveInclude  string
	serveExclude  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON scan server",
	Long: `Run hsfilter as a long-lived server that reads scan, scan_batch and filter
requests from stdin and writes one JSON response per line to stdout.

The pattern set is compiled once at startup. The server exits when stdin
closes, a close request arrives or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePatterns, "patterns", "", "Pattern-set file or directory")
	serveCmd.Flags().StringVar(&serveInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	serveCmd.Flags().StringVar(&serveExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(servePatterns, serveInclude, serveExclude)
	if err != nil {
		return err
	}

	eng, cache, err := openBackend()
	if err != nil {
		return err
	}
	opts := []scanner.Option{scanner.WithEngine(eng), scanner.WithLogger(slog.Default())}
	if cache != nil {
		defer cache.Close()
		opts = append(opts, scanner.WithCache(cache))
	}

	core, err := scanner.NewCore(rules, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := core.Close(); err != nil {
			slog.Warn("closing scanner", "error", err)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout()).WithLogger(slog.Default())
	return srv.Run(ctx)
}
