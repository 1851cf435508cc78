// Package portable implements engine.Engine in pure Go.
//
// Every pattern is compiled with coregex. A required literal is extracted from
// each pattern and all literals are searched in one Aho-Corasick pass before
// any regex runs, so patterns whose literal is absent from the input are
// skipped. Matches are reported the way Hyperscan reports them: ordered by
// end offset, with start offsets only for SomLeftMost patterns.
package portable

import (
	"cmp"
	"fmt"
	"regexp/syntax"
	"slices"
	"strings"

	"github.com/coregx/coregex"
	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Name is the engine name recorded in serialized databases.
const Name = "portable"

const supportedFlags = engine.Caseless | engine.DotAll | engine.MultiLine |
	engine.SingleMatch | engine.AllowEmpty | engine.Utf8 | engine.UCP |
	engine.Prefilter | engine.SomLeftMost

// Engine is the pure-Go engine. The zero value is ready to use.
type Engine struct{}

// New returns a portable engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "portable".
func (e *Engine) Name() string { return Name }

// Version returns the serialization format version.
func (e *Engine) Version() string {
	return fmt.Sprintf("%s/%d", Name, formatVersion)
}

// Validate compiles p on its own and discards the result.
func (e *Engine) Validate(p engine.Pattern) error {
	_, err := compilePattern(p)
	if err != nil {
		return &engine.CompileError{Index: 0, Message: err.Error()}
	}
	return nil
}

// Compile builds a database from patterns.
func (e *Engine) Compile(patterns []engine.Pattern) (engine.Database, error) {
	if len(patterns) == 0 {
		return nil, &engine.CompileError{Index: -1, Message: "no patterns to compile"}
	}

	db := &database{
		patterns: make([]compiled, 0, len(patterns)),
		size:     headerSize,
	}
	literalIndex := make(map[string]int)

	for i, p := range patterns {
		c, err := compilePattern(p)
		if err != nil {
			return nil, &engine.CompileError{Index: i, Message: err.Error()}
		}

		c.literal = -1
		if c.lit != "" {
			idx, ok := literalIndex[c.lit]
			if !ok {
				idx = len(db.literals)
				literalIndex[c.lit] = idx
				db.literals = append(db.literals, c.lit)
			}
			c.literal = idx
		}

		db.patterns = append(db.patterns, c)
		db.size += patternHeaderSize + len(p.Expression)
	}

	db.initGates()
	return db, nil
}

// PatternIDs returns the pattern ids of db in compile order.
func (e *Engine) PatternIDs(db engine.Database) ([]uint, error) {
	d, ok := db.(*database)
	if !ok || d == nil || d.closed.Load() {
		return nil, engine.ErrInvalid
	}
	ids := make([]uint, len(d.patterns))
	for i := range d.patterns {
		ids[i] = d.patterns[i].src.ID
	}
	return ids, nil
}

// AllocScratch allocates scratch for db or grows s to fit it.
func (e *Engine) AllocScratch(db engine.Database, s engine.Scratch) (engine.Scratch, error) {
	d, ok := db.(*database)
	if !ok || d == nil || d.closed.Load() {
		return nil, engine.ErrInvalid
	}

	if s == nil {
		return &scratch{capacity: len(d.patterns)}, nil
	}

	sc, ok := s.(*scratch)
	if !ok || sc.closed.Load() {
		return nil, engine.ErrInvalid
	}
	if sc.inUse.Load() {
		return nil, engine.ErrScratchInUse
	}
	sc.capacity = max(sc.capacity, len(d.patterns))
	return sc, nil
}

// Scan runs every pattern of db over data and reports matches in end-offset
// order.
func (e *Engine) Scan(db engine.Database, data []byte, s engine.Scratch, handler engine.MatchHandler) error {
	d, ok := db.(*database)
	if !ok || d == nil || d.closed.Load() {
		return engine.ErrInvalid
	}
	sc, ok := s.(*scratch)
	if !ok || sc == nil || sc.closed.Load() || sc.capacity < len(d.patterns) {
		return engine.ErrInvalid
	}
	if !sc.inUse.CompareAndSwap(false, true) {
		return engine.ErrScratchInUse
	}
	defer sc.inUse.Store(false)

	present := d.literalsPresent(data, sc)
	hits := sc.hits[:0]

	for i := range d.patterns {
		p := &d.patterns[i]
		if p.literal >= 0 && !present[p.literal] {
			continue
		}
		hits = p.collect(data, hits)
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.to, b.to); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	sc.hits = hits[:0]

	for _, h := range hits {
		if !handler(h.id, h.from, h.to) {
			return engine.ErrScanTerminated
		}
	}
	return nil
}

type hit struct {
	id       uint
	from, to uint64
}

// compiled is one pattern of a portable database.
type compiled struct {
	src     engine.Pattern
	re      *coregex.Regex
	lit     string
	literal int // index into database.literals, -1 when ungated
}

// collect appends the matches of p in data to hits.
func (p *compiled) collect(data []byte, hits []hit) []hit {
	flags := p.src.Flags
	for _, loc := range p.re.FindAllIndex(data, -1) {
		if loc[0] == loc[1] && flags&engine.AllowEmpty == 0 {
			continue
		}
		h := hit{id: p.src.ID, to: uint64(loc[1])}
		if flags&engine.SomLeftMost != 0 {
			h.from = uint64(loc[0])
		}
		hits = append(hits, h)
		if flags&engine.SingleMatch != 0 {
			break
		}
	}
	return hits
}

func compilePattern(p engine.Pattern) (compiled, error) {
	if unsupported := p.Flags &^ supportedFlags; unsupported != 0 {
		return compiled{}, fmt.Errorf("unsupported flags 0x%x", uint(unsupported))
	}

	src := withInlineFlags(p.Expression, p.Flags)
	parsed, err := syntax.Parse(src, syntax.Perl)
	if err != nil {
		return compiled{}, err
	}
	if p.Flags&engine.Prefilter != 0 {
		parsed = widen(parsed)
		src = parsed.String()
	}

	re, err := coregex.Compile(src)
	if err != nil {
		return compiled{}, err
	}

	if p.Flags&engine.AllowEmpty == 0 && re.Match([]byte{}) {
		return compiled{}, fmt.Errorf("pattern matches empty buffer; use AllowEmpty to allow this")
	}

	return compiled{src: p, re: re, lit: requiredLiteral(parsed.Simplify())}, nil
}

func withInlineFlags(expr string, flags engine.Flag) string {
	var b strings.Builder
	if flags&engine.Caseless != 0 {
		b.WriteByte('i')
	}
	if flags&engine.MultiLine != 0 {
		b.WriteByte('m')
	}
	if flags&engine.DotAll != 0 {
		b.WriteByte('s')
	}
	if b.Len() == 0 {
		return expr
	}
	return "(?" + b.String() + ")" + expr
}

// minGateLiteral is the shortest literal worth gating on.
const minGateLiteral = 3

// requiredLiteral returns the longest case-sensitive literal that every match
// of re must contain, or "" when there is none worth gating on.
func requiredLiteral(re *syntax.Regexp) string {
	lit := literalOf(re)
	if len(lit) < minGateLiteral {
		return ""
	}
	return lit
}

func literalOf(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpLiteral:
		if re.Flags&syntax.FoldCase != 0 {
			return ""
		}
		return string(re.Rune)
	case syntax.OpCapture, syntax.OpPlus:
		return literalOf(re.Sub[0])
	case syntax.OpRepeat:
		if re.Min < 1 {
			return ""
		}
		return literalOf(re.Sub[0])
	case syntax.OpConcat:
		best := ""
		for _, sub := range re.Sub {
			if lit := literalOf(sub); len(lit) > len(best) {
				best = lit
			}
		}
		return best
	}
	return ""
}
