package sarif

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	report := NewReport("1.2.3")

	assert.Equal(t, SchemaURI, report.Schema)
	assert.Equal(t, Version, report.Version)
	require.Len(t, report.Runs, 1)
	assert.Equal(t, ToolName, report.Runs[0].Tool.Driver.Name)
	assert.Equal(t, "1.2.3", report.Runs[0].Tool.Driver.Version)
	assert.NotNil(t, report.Runs[0].Results)
}

func TestAddRule(t *testing.T) {
	report := NewReport("dev")
	report.AddRule("aws-key", "aws-key", "AWS access key id")
	report.AddRule("aws-key", "aws-key", "ignored")
	report.AddRule("word", "word", "")

	rules := report.Runs[0].Tool.Driver.Rules
	require.Len(t, rules, 2)
	assert.Equal(t, "AWS access key id", rules[0].ShortDescription.Text)
	assert.Equal(t, "word", rules[1].ShortDescription.Text)
}

func TestAddResult(t *testing.T) {
	report := NewReport("dev")
	report.AddResult("aws-key", "aws-key", "/path/to/secrets.txt", Region{StartLine: 10, StartColumn: 5, EndLine: 10, EndColumn: 25})
	report.AddResult("aws-key", "aws-key", "relative/file.txt", Region{})

	results := report.Runs[0].Results
	require.Len(t, results, 2)
	assert.Equal(t, "warning", results[0].Level)

	loc := results[0].Locations[0].PhysicalLocation
	assert.Equal(t, "file:///path/to/secrets.txt", loc.ArtifactLocation.URI)
	assert.Equal(t, 10, loc.Region.StartLine)
	assert.Equal(t, 25, loc.Region.EndColumn)
	assert.Equal(t, "relative/file.txt", results[1].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}

func TestRegionFor(t *testing.T) {
	text := "first line\nkey=AKIA\nlast"

	r := RegionFor(text, 11, 18, "key=AKIA")
	assert.Equal(t, 2, r.StartLine)
	assert.Equal(t, 1, r.StartColumn)
	assert.Equal(t, 2, r.EndLine)
	assert.Equal(t, 9, r.EndColumn)
	require.NotNil(t, r.Snippet)
	assert.Equal(t, "key=AKIA", r.Snippet.Text)

	r = RegionFor("héllo", 1, 1, "")
	assert.Equal(t, Region{StartLine: 1, StartColumn: 2, EndLine: 1, EndColumn: 3}, r)
}

func TestWrite(t *testing.T) {
	report := NewReport("dev")
	report.AddRule("r", "r", "")
	report.AddResult("r", "r", "a.txt", RegionFor("abc", 0, 2, ""))

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, SchemaURI, decoded["$schema"])
	assert.NotContains(t, buf.String(), "snippet")
	assert.NotContains(t, buf.String(), "rules\":null")
}
