// Package sarif renders scan matches as a SARIF 2.1.0 log.
package sarif

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "hsfilter"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`

	rules map[string]bool
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule describes one pattern of the set.
type Rule struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ShortDescription Message `json:"shortDescription"`
}

// Result represents a single match
type Result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations"`
}

// Message holds plain text.
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is a 1-based line and column range. EndColumn points one past the
// last character.
type Region struct {
	StartLine   int      `json:"startLine"`
	StartColumn int      `json:"startColumn"`
	EndLine     int      `json:"endLine"`
	EndColumn   int      `json:"endColumn"`
	Snippet     *Message `json:"snippet,omitempty"`
}

// NewReport creates an empty report for the given tool version.
func NewReport(toolVersion string) *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: ToolName, Version: toolVersion, Rules: []Rule{}}},
			Results: []Result{},
		}},
		rules: make(map[string]bool),
	}
}

// AddRule registers a rule once; later calls with the same id are ignored.
func (r *Report) AddRule(id, name, description string) {
	if r.rules[id] {
		return
	}
	r.rules[id] = true
	if description == "" {
		description = name
	}
	driver := &r.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, Rule{ID: id, Name: name, ShortDescription: Message{Text: description}})
}

// AddResult records a match of rule ruleID in the file at path.
func (r *Report) AddResult(ruleID, message, path string, region Region) {
	r.Runs[0].Results = append(r.Runs[0].Results, Result{
		RuleID:  ruleID,
		Level:   "warning",
		Message: Message{Text: message},
		Locations: []Location{{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: formatFileURI(path)},
				Region:           region,
			},
		}},
	})
}

// Write encodes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RegionFor converts the character offsets start and end (inclusive) of text
// into a region. snippet is attached when non-empty.
func RegionFor(text string, start, end int, snippet string) Region {
	region := Region{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1}
	line, col := 1, 1
	i := 0
	for _, c := range text {
		if i == start {
			region.StartLine, region.StartColumn = line, col
		}
		if i == end {
			region.EndLine, region.EndColumn = line, col+1
			break
		}
		if c == '\n' {
			line, col = line+1, 1
		} else {
			col++
		}
		i++
	}
	if snippet != "" {
		region.Snippet = &Message{Text: snippet}
	}
	return region
}

// formatFileURI gives absolute paths a file:// prefix and leaves relative
// paths as they are.
func formatFileURI(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "file://" + path
}
