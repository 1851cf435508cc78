// Package rule loads pattern sets from YAML files and turns them into
// expressions, regexp2 objects and filter candidates.
package rule

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/hsfilter/pkg/filter"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
)

// Rule is one named pattern of a pattern set.
type Rule struct {
	ID               uint
	HasID            bool
	Name             string
	Pattern          string
	Flags            []string
	Description      string
	Examples         []string
	NegativeExamples []string
}

// CompileFlags parses the flag names of r.
func (r *Rule) CompileFlags() (hs.Flag, error) {
	flags, err := hs.ParseFlags(r.Flags)
	if err != nil {
		return 0, fmt.Errorf("rule %s: %w", r.Name, err)
	}
	return flags, nil
}

// Expression returns the expression for r. The rule is attached as the
// expression context.
func (r *Rule) Expression() (*hs.Expression, error) {
	flags, err := r.CompileFlags()
	if err != nil {
		return nil, err
	}
	opts := []hs.ExpressionOption{hs.WithContext(r)}
	if r.HasID {
		opts = append(opts, hs.WithID(r.ID))
	}
	return hs.NewExpression(r.Pattern, flags, opts...), nil
}

// RegexOptions maps the rule flags that change matching semantics to regexp2
// options. Engine-only flags have no regexp2 equivalent and are ignored.
func (r *Rule) RegexOptions() (regexp2.RegexOptions, error) {
	flags, err := r.CompileFlags()
	if err != nil {
		return 0, err
	}
	opts := regexp2.None
	if flags.Has(hs.Caseless) {
		opts |= regexp2.IgnoreCase
	}
	if flags.Has(hs.MultiLine) {
		opts |= regexp2.Multiline
	}
	if flags.Has(hs.DotAll) {
		opts |= regexp2.Singleline
	}
	return opts, nil
}

// Regexp compiles r with regexp2.
func (r *Rule) Regexp() (*regexp2.Regexp, error) {
	opts, err := r.RegexOptions()
	if err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(r.Pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.Name, err)
	}
	return re, nil
}

// FilterPattern maps r to a filter candidate pattern.
func FilterPattern(r *Rule) (filter.Pattern, error) {
	flags, err := r.CompileFlags()
	if err != nil {
		return filter.Pattern{}, err
	}
	p, err := filter.Literal(r.Pattern)
	if err != nil {
		return filter.Pattern{}, err
	}
	p.CaseInsensitive = p.CaseInsensitive || flags.Has(hs.Caseless)
	p.Multiline = p.Multiline || flags.Has(hs.MultiLine)
	p.DotAll = p.DotAll || flags.Has(hs.DotAll)
	return p, nil
}

// Expressions converts a whole set, in order.
func Expressions(rules []*Rule) ([]*hs.Expression, error) {
	exprs := make([]*hs.Expression, 0, len(rules))
	for _, r := range rules {
		e, err := r.Expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// Compiled pairs a rule with its regexp2 form.
type Compiled struct {
	Rule   *Rule
	Regexp *regexp2.Regexp
}

// Compile compiles every rule with regexp2.
func Compile(rules []*Rule) ([]*Compiled, error) {
	out := make([]*Compiled, 0, len(rules))
	for _, r := range rules {
		re, err := r.Regexp()
		if err != nil {
			return nil, err
		}
		out = append(out, &Compiled{Rule: r, Regexp: re})
	}
	return out, nil
}

// CompiledPattern maps a compiled rule to a filter candidate pattern.
func CompiledPattern(c *Compiled) (filter.Pattern, error) {
	return FilterPattern(c.Rule)
}
