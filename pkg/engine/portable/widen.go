package portable

import (
	"cmp"
	"regexp/syntax"
	"slices"
	"unicode"
)

// widen rewrites re so that it matches everything a Perl-compatible engine
// with Unicode character properties would match. Prefilter databases may
// report extra candidates but must never miss one.
//
//   - "$" also matches before a final newline.
//   - \b and \B are dropped.
//   - Positive \d, \w and \s classes gain their Unicode ranges.
//
// Negated ASCII classes are already supersets of their Unicode forms.
func widen(re *syntax.Regexp) *syntax.Regexp {
	for i, sub := range re.Sub {
		re.Sub[i] = widen(sub)
	}

	switch re.Op {
	case syntax.OpEndText:
		if re.Flags&syntax.WasDollar == 0 {
			return re
		}
		newline := &syntax.Regexp{Op: syntax.OpLiteral, Rune: []rune{'\n'}}
		return &syntax.Regexp{
			Op: syntax.OpConcat,
			Sub: []*syntax.Regexp{
				{Op: syntax.OpQuest, Sub: []*syntax.Regexp{newline}},
				{Op: syntax.OpEndText},
			},
		}
	case syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return &syntax.Regexp{Op: syntax.OpEmptyMatch}
	case syntax.OpCharClass:
		re.Rune = widenClass(re.Rune)
	}
	return re
}

func widenClass(ranges []rune) []rune {
	var extra []*unicode.RangeTable
	if covers(ranges, '0', '9') {
		extra = append(extra, unicode.Nd)
	}
	if covers(ranges, '0', '9') && covers(ranges, 'A', 'Z') &&
		covers(ranges, 'a', 'z') && covers(ranges, '_', '_') {
		extra = append(extra, unicode.L, unicode.Mn, unicode.Pc)
	}
	if covers(ranges, '\t', '\n') && covers(ranges, '\f', '\r') && covers(ranges, ' ', ' ') {
		extra = append(extra, unicode.White_Space)
	}
	if len(extra) == 0 {
		return ranges
	}

	out := slices.Clone(ranges)
	for _, t := range extra {
		out = appendTable(out, t)
	}
	return mergeRanges(out)
}

// covers reports whether a single range of the class spans lo..hi.
func covers(ranges []rune, lo, hi rune) bool {
	for i := 0; i+1 < len(ranges); i += 2 {
		if ranges[i] <= lo && hi <= ranges[i+1] {
			return true
		}
	}
	return false
}

func appendTable(ranges []rune, t *unicode.RangeTable) []rune {
	for _, r := range t.R16 {
		ranges = appendStrided(ranges, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	for _, r := range t.R32 {
		ranges = appendStrided(ranges, rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	return ranges
}

func appendStrided(ranges []rune, lo, hi, stride rune) []rune {
	if stride == 1 {
		return append(ranges, lo, hi)
	}
	for c := lo; c <= hi; c += stride {
		ranges = append(ranges, c, c)
	}
	return ranges
}

// mergeRanges sorts lo/hi pairs and joins overlapping or adjacent ones.
func mergeRanges(ranges []rune) []rune {
	pairs := make([][2]rune, 0, len(ranges)/2)
	for i := 0; i+1 < len(ranges); i += 2 {
		pairs = append(pairs, [2]rune{ranges[i], ranges[i+1]})
	}
	slices.SortFunc(pairs, func(a, b [2]rune) int { return cmp.Compare(a[0], b[0]) })

	out := make([]rune, 0, len(ranges))
	for _, p := range pairs {
		n := len(out)
		if n > 0 && p[0] <= out[n-1]+1 {
			out[n-1] = max(out[n-1], p[1])
			continue
		}
		out = append(out, p[0], p[1])
	}
	return out
}
