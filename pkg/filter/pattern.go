package filter

import (
	"errors"
	"regexp"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
)

// Pattern is the inspectable form of a candidate: its source text and the
// matching modes that change which inputs it accepts.
type Pattern struct {
	Expr            string
	CaseInsensitive bool
	Multiline       bool
	DotAll          bool
}

// PatternFunc maps a candidate to its Pattern.
type PatternFunc[T any] func(candidate T) (Pattern, error)

// baseFlags are requested for every candidate. Prefilter mode lets the engine
// accept constructs it can only approximate, SingleMatch stops after the
// first hit per expression.
const baseFlags = hs.Utf8 | hs.Prefilter | hs.AllowEmpty | hs.SingleMatch

// ExpressionFor translates a Pattern into the expression compiled for it.
func ExpressionFor(p Pattern, id uint) *hs.Expression {
	flags := baseFlags
	if p.CaseInsensitive {
		flags |= hs.Caseless
	}
	if p.Multiline {
		flags |= hs.MultiLine
	}
	if p.DotAll {
		flags |= hs.DotAll
	}
	return hs.NewExpression(p.Expr, flags, hs.WithID(id))
}

// Regexp2 maps a regexp2 candidate. Modes are read from inline flag groups in
// the source; regexp2 does not expose the options it was compiled with, so
// candidates compiled with regexp2.IgnoreCase and friends should use
// Regexp2WithOptions.
func Regexp2(re *regexp2.Regexp) (Pattern, error) {
	if re == nil {
		return Pattern{}, errors.New("nil regexp2 candidate")
	}
	return inspect(re.String()), nil
}

// Regexp2WithOptions returns a mapper for regexp2 candidates compiled with
// opts.
func Regexp2WithOptions(opts regexp2.RegexOptions) PatternFunc[*regexp2.Regexp] {
	return func(re *regexp2.Regexp) (Pattern, error) {
		p, err := Regexp2(re)
		if err != nil {
			return Pattern{}, err
		}
		p.CaseInsensitive = p.CaseInsensitive || opts&regexp2.IgnoreCase != 0
		p.Multiline = p.Multiline || opts&regexp2.Multiline != 0
		p.DotAll = p.DotAll || opts&regexp2.Singleline != 0
		return p, nil
	}
}

// StdRegexp maps a standard library regexp candidate.
func StdRegexp(re *regexp.Regexp) (Pattern, error) {
	if re == nil {
		return Pattern{}, errors.New("nil regexp candidate")
	}
	return inspect(re.String()), nil
}

// Literal treats the candidate string as the pattern source.
func Literal(s string) (Pattern, error) {
	return inspect(s), nil
}

func inspect(expr string) Pattern {
	return Pattern{
		Expr:            expr,
		CaseInsensitive: hasInlineFlag(expr, 'i'),
		Multiline:       hasInlineFlag(expr, 'm'),
		DotAll:          hasInlineFlag(expr, 's'),
	}
}

// hasInlineFlag reports whether any (?flags) or (?flags:...) group in pattern
// sets flag. Scoped groups count as global: widening a mode only makes the
// prefilter accept more inputs, never fewer.
func hasInlineFlag(pattern string, flag byte) bool {
	for i := 0; i < len(pattern)-2; i++ {
		if pattern[i] == '\\' {
			i++
			continue
		}
		if pattern[i] != '(' || pattern[i+1] != '?' {
			continue
		}
		for j := i + 2; j < len(pattern); j++ {
			c := pattern[j]
			// ':' ends the flags of a scoped group, '-' starts cleared
			// flags, anything else starts a different group kind.
			if c == ')' || c == ':' || c == '-' || c == '!' || c == '=' || c == '<' || c == 'P' || c == '\'' {
				break
			}
			if c == flag {
				return true
			}
		}
	}
	return false
}
