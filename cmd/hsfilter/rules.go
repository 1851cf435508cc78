package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/praetorian-inc/hsfilter/pkg/rule"
	"github.com/spf13/cobra"
)

var (
	rulesInclude string
	rulesExclude string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules <file|dir>",
	Short: "List the patterns of a pattern set",
	Long:  "Load and validate a pattern-set file or directory and display its patterns",
	Args:  cobra.ExactArgs(1),
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&rulesInclude, "include", "", "Include patterns whose name matches regex (comma-separated)")
	rulesCmd.Flags().StringVar(&rulesExclude, "exclude", "", "Exclude patterns whose name matches regex (comma-separated)")
	rulesCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRules(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(args[0], rulesInclude, rulesExclude)
	if err != nil {
		return fmt.Errorf("loading patterns from %s: %w", args[0], err)
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

type ruleJSON struct {
	ID          *uint    `json:"id,omitempty"`
	Name        string   `json:"name"`
	Pattern     string   `json:"pattern"`
	Flags       []string `json:"flags,omitempty"`
	Description string   `json:"description,omitempty"`
}

func outputRulesJSON(cmd *cobra.Command, rules []*rule.Rule) error {
	out := make([]ruleJSON, 0, len(rules))
	for _, r := range rules {
		rj := ruleJSON{Name: r.Name, Pattern: r.Pattern, Flags: r.Flags, Description: r.Description}
		if r.HasID {
			id := r.ID
			rj.ID = &id
		}
		out = append(out, rj)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputRulesTable(cmd *cobra.Command, rules []*rule.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tFlags\tPattern\n")
	fmt.Fprintf(w, "--\t----\t-----\t-------\n")

	for _, r := range rules {
		id := "-"
		if r.HasID {
			id = fmt.Sprint(r.ID)
		}
		flags := strings.Join(r.Flags, ",")
		if flags == "" {
			flags = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, r.Name, flags, preview(r.Pattern))
	}

	return nil
}
