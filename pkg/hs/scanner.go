package hs

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/utf8map"
)

// Match is one match reported by Scanner.Scan. Start and End are character
// offsets; End is inclusive. Start is 0 and Text is empty unless the
// expression was compiled with SomLeftMost, because the engine does not track
// start offsets otherwise.
type Match struct {
	Start      int
	End        int
	Text       string
	Expression *Expression
}

func (m Match) String() string {
	return fmt.Sprintf("Match{start=%d, end=%d, text=%q, expression=%s}", m.Start, m.End, m.Text, m.Expression)
}

// ByteMatchHandler receives byte offsets; to is exclusive. Returning false
// stops the scan.
type ByteMatchHandler func(expr *Expression, from, to uint64) bool

// MatchHandler receives character-offset matches. Returning false stops the
// scan.
type MatchHandler func(m Match) bool

// Scanner owns the scratch space needed to scan databases.
//
// A Scanner is not safe for concurrent use; give each goroutine its own, or
// use filter.Factory which does that for you.
type Scanner struct {
	eng      engine.Engine
	scratch  engine.Scratch
	closed   bool
	scanning bool
}

// NewScanner returns a scanner without scratch space. Call AllocScratch
// before scanning.
func NewScanner() *Scanner {
	return &Scanner{}
}

// AllocScratch allocates scratch space for db, or grows the existing scratch
// so it can also be used with db.
func (s *Scanner) AllocScratch(db *Database) error {
	if s.closed {
		return ErrScannerClosed
	}
	if db.closed.Load() {
		return ErrDatabaseClosed
	}
	if s.eng != nil && s.eng.Name() != db.eng.Name() {
		return fmt.Errorf("%w: scratch was allocated by the %s engine, database uses %s",
			ErrInvalidState, s.eng.Name(), db.eng.Name())
	}

	scratch, err := db.eng.AllocScratch(db.native, s.scratch)
	if err != nil {
		return &EngineError{Op: "allocate scratch", Err: err}
	}
	s.scratch = scratch
	s.eng = db.eng
	return nil
}

// Size returns the size of the scratch space in bytes.
func (s *Scanner) Size() (int, error) {
	if s.closed {
		return 0, ErrScannerClosed
	}
	if s.scratch == nil {
		return 0, ErrScratchNotAllocated
	}
	n, err := s.scratch.Size()
	if err != nil {
		return 0, &EngineError{Op: "scratch size", Err: err}
	}
	return n, nil
}

// Scan returns all matches of db in input with rune offsets.
func (s *Scanner) Scan(db *Database, input string) ([]Match, error) {
	var matches []Match
	err := s.ScanFunc(db, input, func(m Match) bool {
		matches = append(matches, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ScanFunc calls h for every match of db in input, with rune offsets.
func (s *Scanner) ScanFunc(db *Database, input string, h MatchHandler) error {
	// Engines never write to the scanned buffer.
	data := unsafe.Slice(unsafe.StringData(input), len(input))

	var (
		mapping utf8map.Mapping
		mapped  bool
	)
	return s.scan(db, data, func(expr *Expression, from, to uint64) bool {
		if !mapped {
			mapping = utf8map.MapString(input)
			mapped = true
		}
		m := newMatch(expr, from, to, mapping)
		if m.Expression.flags.Has(SomLeftMost) && from < to {
			m.Text = input[from:to]
		}
		return h(m)
	})
}

// ScanUTF16 scans UTF-16 code units. Offsets in the returned matches are code
// unit indexes, so a character outside the BMP counts as two.
func (s *Scanner) ScanUTF16(db *Database, input []uint16) ([]Match, error) {
	data, mapping := utf8map.EncodeUTF16(input)

	var matches []Match
	err := s.scan(db, data, func(expr *Expression, from, to uint64) bool {
		m := newMatch(expr, from, to, mapping)
		if m.Expression.flags.Has(SomLeftMost) && from < to {
			m.Text = string(utf16.Decode(input[m.Start : m.End+1]))
		}
		matches = append(matches, m)
		return true
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ScanBytes calls h with raw byte offsets for every match of db in data.
func (s *Scanner) ScanBytes(db *Database, data []byte, h ByteMatchHandler) error {
	return s.scan(db, data, h)
}

// HasMatch reports whether any expression of db matches data. The scan stops
// at the first match.
func (s *Scanner) HasMatch(db *Database, data []byte) (bool, error) {
	found := false
	err := s.scan(db, data, func(*Expression, uint64, uint64) bool {
		found = true
		return false
	})
	return found, err
}

// HasMatchString is HasMatch for string input.
func (s *Scanner) HasMatchString(db *Database, input string) (bool, error) {
	return s.HasMatch(db, unsafe.Slice(unsafe.StringData(input), len(input)))
}

// Close frees the scratch space. Closing twice is a no-op.
func (s *Scanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.scratch == nil {
		return nil
	}
	scratch := s.scratch
	s.scratch = nil
	if err := scratch.Close(); err != nil {
		return &EngineError{Op: "free scratch", Err: err}
	}
	return nil
}

func (s *Scanner) scan(db *Database, data []byte, h ByteMatchHandler) error {
	if s.scanning {
		return ErrRecursiveScan
	}
	if s.closed {
		return ErrScannerClosed
	}
	if s.scratch == nil {
		return ErrScratchNotAllocated
	}
	if db.closed.Load() {
		return ErrDatabaseClosed
	}

	s.scanning = true
	defer func() { s.scanning = false }()

	var unknown error
	err := db.eng.Scan(db.native, data, s.scratch, func(id uint, from, to uint64) bool {
		expr := db.lookup(id)
		if expr == nil {
			unknown = fmt.Errorf("%w: id %d", ErrExpressionNotFound, id)
			return false
		}
		return h(expr, from, to)
	})
	if unknown != nil {
		return &EngineError{Op: "scan", Err: unknown}
	}
	if err == nil || errors.Is(err, engine.ErrScanTerminated) {
		return nil
	}
	return &EngineError{Op: "scan", Err: err}
}

// newMatch translates byte offsets to character offsets. A nil mapping means
// the input was ASCII and offsets pass through.
func newMatch(expr *Expression, from, to uint64, mapping utf8map.Mapping) Match {
	if to < 1 {
		to = 1
	}
	m := Match{
		End:        charIndex(mapping, int(to-1)),
		Expression: expr,
	}
	if expr.flags.Has(SomLeftMost) {
		m.Start = charIndex(mapping, int(from))
	}
	return m
}

func charIndex(mapping utf8map.Mapping, byteIndex int) int {
	if mapping == nil {
		return byteIndex
	}
	if byteIndex >= mapping.Len() {
		return mapping.CharIndex(mapping.Len()-1) + 1 + byteIndex - mapping.Len()
	}
	return mapping.CharIndex(byteIndex)
}
