package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/praetorian-inc/hsfilter/pkg/filter"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	filterPatterns string
	filterInclude  string
	filterExclude  string
	filterVerify   bool
	filterWorkers  int
	filterFormat   string
)

var filterCmd = &cobra.Command{
	Use:   "filter [files...]",
	Short: "Shortlist the patterns that could match each input",
	Long: `Prefilter every input against a pattern set and print the candidate patterns
that could match it. Patterns the engine cannot prefilter are always candidates.

With --verify each candidate is confirmed with a backtracking regex engine.`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVar(&filterPatterns, "patterns", "", "Pattern-set file or directory")
	filterCmd.Flags().StringVar(&filterInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	filterCmd.Flags().StringVar(&filterExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	filterCmd.Flags().BoolVar(&filterVerify, "verify", false, "Confirm candidates with regexp2")
	filterCmd.Flags().IntVar(&filterWorkers, "workers", runtime.GOMAXPROCS(0), "Number of concurrent workers")
	filterCmd.Flags().StringVar(&filterFormat, "format", "human", "Output format: human, json")
	addSourceFlags(filterCmd)
}

type candidateResult struct {
	Name      string `json:"name"`
	Pattern   string `json:"pattern"`
	Confirmed *bool  `json:"confirmed,omitempty"`
}

type filterResult struct {
	File       string            `json:"file"`
	Candidates []candidateResult `json:"candidates"`
}

func runFilter(cmd *cobra.Command, args []string) error {
	if filterFormat != "human" && filterFormat != "json" {
		return fmt.Errorf("unknown output format: %s", filterFormat)
	}

	rules, err := loadRules(filterPatterns, filterInclude, filterExclude)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	compiled, err := rule.Compile(rules)
	if err != nil {
		return err
	}

	eng, cache, err := openBackend()
	if err != nil {
		return err
	}
	opts := []filter.Option{filter.WithEngine(eng), filter.WithLogger(slog.Default())}
	if cache != nil {
		defer cache.Close()
		opts = append(opts, filter.WithCache(cache))
	}

	factory, err := filter.NewFactory(compiled, rule.CompiledPattern, opts...)
	if err != nil {
		return fmt.Errorf("creating filter factory: %w", err)
	}
	defer factory.Close()

	inputs, err := readInputs(cmd, args)
	if err != nil {
		return err
	}

	results, err := filterInputs(cmd.Context(), factory, inputs)
	if err != nil {
		return err
	}

	if filterFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	return outputFilterHuman(cmd, results)
}

// filterInputs fans inputs out over workers. Each goroutine holds its own
// filter.Worker for its whole life.
func filterInputs(ctx context.Context, factory *filter.Factory[*rule.Compiled], inputs []input) ([]filterResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	workers := max(1, min(filterWorkers, len(inputs)))
	results := make([]filterResult, len(inputs))

	next := make(chan int)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(next)
		for i := range inputs {
			select {
			case next <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			w := filter.NewWorker()
			sf, err := factory.Get(w)
			if err != nil {
				return err
			}
			for i := range next {
				res, err := filterOne(sf, inputs[i])
				if err != nil {
					return err
				}
				results[i] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func filterOne(sf filter.ScopedFilter[*rule.Compiled], in input) (filterResult, error) {
	text := string(in.data)
	shortlist, err := sf.Filter(text)
	if err != nil {
		return filterResult{}, fmt.Errorf("filtering %s: %w", in.name, err)
	}

	res := filterResult{File: in.name, Candidates: make([]candidateResult, 0, len(shortlist))}
	seen := make(map[*rule.Compiled]bool, len(shortlist))
	for _, c := range shortlist {
		if seen[c] {
			continue
		}
		seen[c] = true

		cr := candidateResult{Name: c.Rule.Name, Pattern: c.Rule.Pattern}
		if filterVerify {
			ok, err := c.Regexp.MatchString(text)
			if err != nil {
				return filterResult{}, fmt.Errorf("verifying %s against %s: %w", c.Rule.Name, in.name, err)
			}
			cr.Confirmed = &ok
		}
		res.Candidates = append(res.Candidates, cr)
	}
	return res, nil
}

func outputFilterHuman(cmd *cobra.Command, results []filterResult) error {
	out := cmd.OutOrStdout()
	s := newStyles(cmd)

	for _, r := range results {
		fmt.Fprintf(out, "%s %s\n", s.file.Sprint(r.File), s.dim.Sprintf("(%d candidates)", len(r.Candidates)))
		for _, c := range r.Candidates {
			mark := ""
			if c.Confirmed != nil {
				if *c.Confirmed {
					mark = s.offsets.Sprint(" confirmed")
				} else {
					mark = s.dim.Sprint(" rejected")
				}
			}
			fmt.Fprintf(out, "  %s%s\n", s.name.Sprint(c.Name), mark)
		}
	}
	return nil
}
