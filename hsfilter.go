// Package hsfilter provides multi-pattern regular expression matching and
// regex prefiltering.
//
// # Multi-pattern scanning
//
// Compile many expressions into one database and scan inputs against all of
// them in a single pass:
//
//	db, err := hsfilter.Compile([]*hsfilter.Expression{
//	    hsfilter.NewExpression(`AKIA[0-9A-Z]{16}`, hsfilter.SomLeftMost),
//	    hsfilter.NewExpression(`password\s*=`, hsfilter.Caseless|hsfilter.SomLeftMost),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	scanner := hsfilter.NewScanner()
//	if err := scanner.AllocScratch(db); err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.Scan(db, content)
//
// # Prefiltering
//
// Shortlist the regexp2 patterns that could match an input, one filter per
// worker goroutine:
//
//	factory, err := hsfilter.NewFactory(patterns)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer factory.Close()
//
//	worker := hsfilter.NewWorker()
//	f, err := factory.Get(worker)
//	candidates, err := f.Filter(content)
//	for _, re := range candidates {
//	    if ok, _ := re.MatchString(content); ok {
//	        fmt.Println("match:", re)
//	    }
//	}
package hsfilter

import (
	"fmt"
	"os"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/hsfilter/pkg/filter"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/hsfilter" without subpackages.
type (
	// Expression is one pattern with its compile flags and optional id.
	Expression = hs.Expression

	// Flag is a set of expression compile flags.
	Flag = hs.Flag

	// Database is a compiled, immutable set of expressions.
	Database = hs.Database

	// Scanner holds the scratch space for scanning one database at a time.
	Scanner = hs.Scanner

	// Match is one reported match with character offsets.
	Match = hs.Match

	// Worker identifies the goroutine a prefilter is bound to.
	Worker = filter.Worker

	// Rule is one named pattern of a pattern-set file.
	Rule = rule.Rule
)

// Re-export compile flags.
const (
	Caseless    = hs.Caseless
	DotAll      = hs.DotAll
	MultiLine   = hs.MultiLine
	SingleMatch = hs.SingleMatch
	AllowEmpty  = hs.AllowEmpty
	Utf8        = hs.Utf8
	UCP         = hs.UCP
	Prefilter   = hs.Prefilter
	SomLeftMost = hs.SomLeftMost
)

// NewExpression creates an expression.
func NewExpression(pattern string, flags Flag, opts ...hs.ExpressionOption) *Expression {
	return hs.NewExpression(pattern, flags, opts...)
}

// Compile compiles expressions into a database.
func Compile(expressions []*Expression, opts ...hs.Option) (*Database, error) {
	return hs.Compile(expressions, opts...)
}

// NewScanner returns a scanner without scratch space.
func NewScanner() *Scanner {
	return hs.NewScanner()
}

// NewWorker returns a fresh worker handle.
func NewWorker() *Worker {
	return filter.NewWorker()
}

// NewFactory prepares a prefilter factory over regexp2 candidates. Modes are
// read from inline flag groups of each pattern.
func NewFactory(candidates []*regexp2.Regexp, opts ...filter.Option) (*filter.Factory[*regexp2.Regexp], error) {
	return filter.NewFactory(candidates, filter.Regexp2, opts...)
}

// NewFilter builds a single prefilter over regexp2 candidates. The filter
// must only be used by one goroutine at a time.
func NewFilter(candidates []*regexp2.Regexp, opts ...filter.Option) (*filter.PatternFilter[*regexp2.Regexp], error) {
	return filter.New(candidates, filter.Regexp2, opts...)
}

// LoadPatterns loads a pattern-set file or directory.
func LoadPatterns(path string) ([]*Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}
	loader := rule.NewLoader()
	if info.IsDir() {
		return loader.LoadDir(path)
	}
	return loader.LoadFile(path)
}

// CompilePatterns compiles a loaded pattern set. Each expression carries its
// *Rule as context.
func CompilePatterns(rules []*Rule, opts ...hs.Option) (*Database, error) {
	exprs, err := rule.Expressions(rules)
	if err != nil {
		return nil, err
	}
	return hs.Compile(exprs, opts...)
}
