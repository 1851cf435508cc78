package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/praetorian-inc/hsfilter/pkg/source"
	"github.com/praetorian-inc/hsfilter/pkg/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// input is one named buffer to scan.
type input struct {
	name string
	data []byte
}

// sourceFlags controls how file and directory arguments are expanded.
type sourceFlags struct {
	includeHidden bool
	maxFileSize   int64
	extract       []string
}

var inputFlags sourceFlags

// addSourceFlags registers the input discovery flags on cmd.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&inputFlags.includeHidden, "include-hidden", false, "Include hidden files and directories")
	cmd.Flags().Int64Var(&inputFlags.maxFileSize, "max-file-size", 10<<20, "Skip files larger than this many bytes (0 = no limit)")
	cmd.Flags().StringSliceVar(&inputFlags.extract, "extract", nil, "Extract text from documents and archives: xlsx, docx, pdf, zip, 7z or all")
}

// readInputs expands the named files and directories, or reads stdin when no
// paths are given and stdin is not a terminal. Directories honor .gitignore.
func readInputs(cmd *cobra.Command, paths []string) ([]input, error) {
	if len(paths) == 0 {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return nil, fmt.Errorf("no input files given and stdin is a terminal")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []input{{name: "<stdin>", data: data}}, nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		mu     sync.Mutex
		inputs []input
	)
	for _, p := range paths {
		walker := source.NewWalker(source.Config{
			Root:          p,
			IncludeHidden: inputFlags.includeHidden,
			MaxFileSize:   inputFlags.maxFileSize,
			Extract:       inputFlags.extract,
		}).WithLogger(slog.Default())

		err := walker.Walk(ctx, func(_ context.Context, item source.Item) error {
			mu.Lock()
			defer mu.Unlock()
			inputs = append(inputs, input{name: item.Name(), data: item.Content})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
	}
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].name < inputs[j].name })
	return inputs, nil
}

// loadRules loads a pattern-set file or directory and applies the
// comma-separated include and exclude name filters.
func loadRules(path, include, exclude string) ([]*rule.Rule, error) {
	if path == "" {
		return nil, fmt.Errorf("--patterns is required")
	}

	loader := rule.NewLoader()
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var rules []*rule.Rule
	if info.IsDir() {
		rules, err = loader.LoadDir(path)
	} else {
		rules, err = loader.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}

	return rule.Filter(rules, rule.FilterConfig{
		Include: rule.ParsePatterns(include),
		Exclude: rule.ParsePatterns(exclude),
	})
}

// openBackend resolves the persistent --engine and --cache flags. cache is
// nil when no --cache was given.
func openBackend() (engine.Engine, store.Store, error) {
	eng, err := hs.EngineByName(engineName)
	if err != nil {
		return nil, nil, err
	}
	if cachePath == "" {
		return eng, nil, nil
	}
	cache, err := store.New(store.Config{Path: cachePath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}
	return eng, cache, nil
}

// hsOptions turns the persistent flags into compile options. The returned
// closer releases the cache.
func hsOptions() ([]hs.Option, func(), error) {
	eng, cache, err := openBackend()
	if err != nil {
		return nil, nil, err
	}
	opts := []hs.Option{hs.WithEngine(eng), hs.WithLogger(slog.Default())}
	if cache == nil {
		return opts, func() {}, nil
	}
	return append(opts, hs.WithCache(cache)), func() { _ = cache.Close() }, nil
}

// styles holds color formatters for human output.
type styles struct {
	file    *color.Color
	name    *color.Color
	match   *color.Color
	offsets *color.Color
	dim     *color.Color
}

// newStyles enables colors only when stdout is a terminal and NO_COLOR is
// unset.
func newStyles(cmd *cobra.Command) *styles {
	enabled := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}

	s := &styles{
		file:    color.New(color.Bold, color.FgHiWhite),
		name:    color.New(color.Bold, color.FgHiBlue),
		match:   color.New(color.FgYellow),
		offsets: color.New(color.FgHiGreen),
		dim:     color.New(color.Faint),
	}
	if !enabled {
		for _, c := range []*color.Color{s.file, s.name, s.match, s.offsets, s.dim} {
			c.DisableColor()
		}
	}
	return s
}

// preview shortens text for single-line output.
func preview(text string) string {
	const maxPreview = 80
	text = strings.ReplaceAll(text, "\n", `\n`)
	if runes := []rune(text); len(runes) > maxPreview {
		return string(runes[:maxPreview]) + "..."
	}
	return text
}
