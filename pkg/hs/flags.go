package hs

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Flag is a set of expression compile flags.
type Flag uint

const (
	Caseless    = Flag(engine.Caseless)
	DotAll      = Flag(engine.DotAll)
	MultiLine   = Flag(engine.MultiLine)
	SingleMatch = Flag(engine.SingleMatch)
	AllowEmpty  = Flag(engine.AllowEmpty)
	Utf8        = Flag(engine.Utf8)
	UCP         = Flag(engine.UCP)
	Prefilter   = Flag(engine.Prefilter)
	SomLeftMost = Flag(engine.SomLeftMost)
	Combination = Flag(engine.Combination)
	Quiet       = Flag(engine.Quiet)
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{Caseless, "caseless"},
	{DotAll, "dotall"},
	{MultiLine, "multiline"},
	{SingleMatch, "single_match"},
	{AllowEmpty, "allow_empty"},
	{Utf8, "utf8"},
	{UCP, "ucp"},
	{Prefilter, "prefilter"},
	{SomLeftMost, "som_leftmost"},
	{Combination, "combination"},
	{Quiet, "quiet"},
}

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool { return f&other == other }

// Bits returns the individual flags set in f, lowest bit first.
func (f Flag) Bits() []Flag {
	out := make([]Flag, 0, bits.OnesCount(uint(f)))
	for rest := uint(f); rest != 0; rest &= rest - 1 {
		out = append(out, Flag(1)<<bits.TrailingZeros(rest))
	}
	return out
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, bit := range f.Bits() {
		name := fmt.Sprintf("0x%x", uint(bit))
		for _, fn := range flagNames {
			if fn.flag == bit {
				name = fn.name
				break
			}
		}
		names = append(names, name)
	}
	return strings.Join(names, "|")
}

// ParseFlag parses a flag name such as "caseless" or "som_leftmost". Names
// are case-insensitive and '-' may be used instead of '_'.
func ParseFlag(name string) (Flag, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, fn := range flagNames {
		if fn.name == normalized {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", name)
}

// ParseFlags parses and combines several flag names.
func ParseFlags(names []string) (Flag, error) {
	var f Flag
	for _, name := range names {
		flag, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		f |= flag
	}
	return f, nil
}
