package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/praetorian-inc/hsfilter/pkg/sarif"
	"github.com/spf13/cobra"
)

var (
	scanDatabase string
	scanPatterns string
	scanInclude  string
	scanExclude  string
	scanFormat   string
)

var scanCmd = &cobra.Command{
	Use:   "scan [files...]",
	Short: "Scan inputs against a compiled database or pattern set",
	Long: `Scan files, or stdin when no files are given, against every pattern at once.
Offsets are character offsets into the decoded text.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanDatabase, "db", "", "Database saved by the compile command")
	scanCmd.Flags().StringVar(&scanPatterns, "patterns", "", "Pattern-set file or directory to compile before scanning")
	scanCmd.Flags().StringVar(&scanInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.MarkFlagsMutuallyExclusive("db", "patterns")
	addSourceFlags(scanCmd)
}

type scanResult struct {
	File    string `json:"file"`
	Name    string `json:"name"`
	ID      *uint  `json:"id,omitempty"`
	Pattern string `json:"pattern"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "human" && scanFormat != "json" && scanFormat != "sarif" {
		return fmt.Errorf("unknown output format: %s", scanFormat)
	}

	db, release, err := openScanDatabase()
	if err != nil {
		return err
	}
	defer release()

	inputs, err := readInputs(cmd, args)
	if err != nil {
		return err
	}

	scanner := hs.NewScanner()
	if err := scanner.AllocScratch(db); err != nil {
		return fmt.Errorf("allocating scratch: %w", err)
	}
	defer scanner.Close()

	results := make([]scanResult, 0)
	report := sarif.NewReport(version)
	for _, in := range inputs {
		text := string(in.data)
		matches, err := scanner.Scan(db, text)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", in.name, err)
		}
		for _, m := range matches {
			res := newScanResult(in.name, m)
			results = append(results, res)
			if scanFormat == "sarif" {
				addSarifResult(report, text, res, m.Expression)
			}
		}
	}

	switch scanFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case "sarif":
		return report.Write(cmd.OutOrStdout())
	}
	return outputScanHuman(cmd, results)
}

// addSarifResult records res in report. Without a start offset the region
// covers only the last matched character.
func addSarifResult(report *sarif.Report, text string, res scanResult, e *hs.Expression) {
	description := ""
	if r, ok := e.Context().(*rule.Rule); ok {
		description = r.Description
	}
	report.AddRule(res.Name, res.Name, description)

	start := res.Start
	if res.Text == "" {
		start = res.End
	}
	report.AddResult(res.Name, res.Name, res.File, sarif.RegionFor(text, start, res.End, res.Text))
}

func openScanDatabase() (*hs.Database, func(), error) {
	switch {
	case scanDatabase != "":
		eng, err := hs.EngineByName(engineName)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.Open(scanDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		defer f.Close()

		db, err := hs.Load(f, hs.WithEngine(eng))
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", scanDatabase, err)
		}
		return db, func() { _ = db.Close() }, nil

	case scanPatterns != "":
		rules, err := loadRules(scanPatterns, scanInclude, scanExclude)
		if err != nil {
			return nil, nil, fmt.Errorf("loading patterns: %w", err)
		}
		db, closeCache, err := compileRules(rules)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			_ = db.Close()
			closeCache()
		}, nil

	default:
		return nil, nil, fmt.Errorf("one of --db or --patterns is required")
	}
}

func newScanResult(file string, m hs.Match) scanResult {
	res := scanResult{
		File:    file,
		Name:    expressionName(m.Expression),
		Pattern: m.Expression.Pattern(),
		Start:   m.Start,
		End:     m.End,
		Text:    m.Text,
	}
	if id, ok := m.Expression.ID(); ok {
		res.ID = &id
	}
	return res
}

// expressionName is the rule name when the expression came from a pattern
// set, the pattern otherwise.
func expressionName(e *hs.Expression) string {
	if r, ok := e.Context().(*rule.Rule); ok {
		return r.Name
	}
	return e.Pattern()
}

func outputScanHuman(cmd *cobra.Command, results []scanResult) error {
	out := cmd.OutOrStdout()
	s := newStyles(cmd)

	for _, r := range results {
		fmt.Fprintf(out, "%s:%s %s",
			s.file.Sprint(r.File),
			s.offsets.Sprintf("%d-%d", r.Start, r.End),
			s.name.Sprint(r.Name))
		if r.Text != "" {
			fmt.Fprintf(out, " %s", s.match.Sprintf("%q", preview(r.Text)))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, s.dim.Sprintf("%d matches", len(results)))
	return nil
}
