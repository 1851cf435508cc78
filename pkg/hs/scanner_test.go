package hs

import (
	"testing"

	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
	"github.com/praetorian-inc/hsfilter/pkg/utf8map"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanner(t *testing.T, db *Database) *Scanner {
	t.Helper()
	s := NewScanner()
	require.NoError(t, s.AllocScratch(db))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func scanAll(t *testing.T, db *Database, input string) []Match {
	t.Helper()
	matches, err := newScanner(t, db).Scan(db, input)
	require.NoError(t, err)
	return matches
}

func TestScanner_CaselessWithStartOfMatch(t *testing.T) {
	e := NewExpression("Te?st", Caseless|SomLeftMost)
	db := compile(t, e)

	matches := scanAll(t, db, "Dies ist ein Test tst.")

	require.Len(t, matches, 2)
	assert.Equal(t, Match{Start: 13, End: 16, Text: "Test", Expression: e}, matches[0])
	assert.Equal(t, Match{Start: 18, End: 20, Text: "tst", Expression: e}, matches[1])
}

func TestScanner_MultipleExpressions(t *testing.T) {
	test := NewExpression("Te?st", Caseless|SomLeftMost)
	ist := NewExpression("ist", SomLeftMost)
	db := compile(t, test, ist)

	matches := scanAll(t, db, "Dies ist ein Test tst.")

	require.Len(t, matches, 3)
	assert.Same(t, ist, matches[0].Expression)
	assert.Equal(t, 5, matches[0].Start)
	assert.Equal(t, 7, matches[0].End)
	assert.Same(t, test, matches[1].Expression)
	assert.Same(t, test, matches[2].Expression)
}

func TestScanner_ExplicitIDs(t *testing.T) {
	db := compile(t,
		NewExpression("test", SomLeftMost, WithID(0)),
		NewExpression("test1", SomLeftMost, WithID(1)),
		NewExpression("test3", SomLeftMost, WithID(2)),
		NewExpression("你好", SomLeftMost|Utf8, WithID(3)),
	)

	matches := scanAll(t, db, "test test1 test test3")

	require.Len(t, matches, 6)
	var ids []uint
	for _, m := range matches {
		id, _ := m.Expression.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []uint{0, 0, 1, 0, 0, 2}, ids)
}

func TestScanner_NonASCIIOffsets(t *testing.T) {
	nihao := NewExpression("你好", SomLeftMost|Utf8)
	world := NewExpression("world", SomLeftMost)
	db := compile(t, nihao, world)

	matches := scanAll(t, db, "Say 你好 world")

	require.Len(t, matches, 2)
	assert.Equal(t, Match{Start: 4, End: 5, Text: "你好", Expression: nihao}, matches[0])
	assert.Equal(t, Match{Start: 7, End: 11, Text: "world", Expression: world}, matches[1])
}

func TestScanner_ScanBytesReportsByteOffsets(t *testing.T) {
	db := compile(t,
		NewExpression("你好", SomLeftMost|Utf8),
		NewExpression("world", SomLeftMost),
	)
	s := newScanner(t, db)

	type span struct{ from, to uint64 }
	var got []span
	err := s.ScanBytes(db, []byte("Say 你好 world"), func(expr *Expression, from, to uint64) bool {
		got = append(got, span{from, to})
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []span{{4, 10}, {11, 16}}, got)
}

func TestScanner_SurrogatePairShiftsOffsets(t *testing.T) {
	e := NewExpression(`\d{5}`, Utf8|SomLeftMost)
	db := compile(t, e)
	input := "😀 Hallo 12345 und 67890 sowie 11111"

	t.Run("runes", func(t *testing.T) {
		matches := scanAll(t, db, input)
		require.Len(t, matches, 3)
		assert.Equal(t, Match{Start: 8, End: 12, Text: "12345", Expression: e}, matches[0])
		assert.Equal(t, Match{Start: 18, End: 22, Text: "67890", Expression: e}, matches[1])
		assert.Equal(t, Match{Start: 30, End: 34, Text: "11111", Expression: e}, matches[2])
	})

	t.Run("utf16 units", func(t *testing.T) {
		matches, err := newScanner(t, db).ScanUTF16(db, utf8map.ToUTF16(input))
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, Match{Start: 9, End: 13, Text: "12345", Expression: e}, matches[0])
		assert.Equal(t, Match{Start: 19, End: 23, Text: "67890", Expression: e}, matches[1])
		assert.Equal(t, Match{Start: 31, End: 35, Text: "11111", Expression: e}, matches[2])
	})
}

func TestScanner_WithoutStartOfMatch(t *testing.T) {
	e := NewExpression("^start", 0)
	db := compile(t, e)

	matches := scanAll(t, db, "start middle end")

	require.Len(t, matches, 1)
	assert.Equal(t, Match{Start: 0, End: 4, Text: "", Expression: e}, matches[0])
}

func TestScanner_AllowEmpty(t *testing.T) {
	anything := NewExpression(".*", AllowEmpty|SomLeftMost)
	matches := scanAll(t, compile(t, anything), "")
	require.Len(t, matches, 1)
	assert.Equal(t, Match{Start: 0, End: 0, Text: "", Expression: anything}, matches[0])

	matches = scanAll(t, compile(t, NewExpression(".+", SomLeftMost)), "")
	assert.Empty(t, matches)
}

func TestScanner_HasMatch(t *testing.T) {
	db := compile(t, NewExpression("test", Caseless))
	s := newScanner(t, db)

	tests := []struct {
		input string
		want  bool
	}{
		{"Test", true},
		{"A test string", true},
		{"Another TEST", true},
		{"Completely different", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := s.HasMatchString(db, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanner_HandlerStopIsNotAnError(t *testing.T) {
	db := compile(t, NewExpression("a", SomLeftMost))
	s := newScanner(t, db)

	calls := 0
	err := s.ScanFunc(db, "aaaa", func(Match) bool {
		calls++
		return calls < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestScanner_RecursiveScan(t *testing.T) {
	db := compile(t, NewExpression("a", 0))
	s := newScanner(t, db)

	var inner error
	err := s.ScanFunc(db, "a", func(Match) bool {
		_, inner = s.Scan(db, "a")
		return true
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrRecursiveScan)
	assert.ErrorIs(t, inner, ErrInvalidState)

	// the guard is cleared once the outer scan returns
	_, err = s.Scan(db, "a")
	assert.NoError(t, err)
}

func TestScanner_ScanBeforeAlloc(t *testing.T) {
	db := compile(t, NewExpression("a", 0))

	_, err := NewScanner().Scan(db, "a")
	assert.ErrorIs(t, err, ErrScratchNotAllocated)
}

func TestScanner_Close(t *testing.T) {
	db := compile(t, NewExpression("a", 0))
	s := NewScanner()
	require.NoError(t, s.AllocScratch(db))

	size, err := s.Size()
	require.NoError(t, err)
	assert.Greater(t, size, 0)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Scan(db, "a")
	assert.ErrorIs(t, err, ErrScannerClosed)
	assert.ErrorIs(t, s.AllocScratch(db), ErrScannerClosed)
}

func TestScanner_ClosedDatabase(t *testing.T) {
	db, err := Compile([]*Expression{NewExpression("a", 0)}, WithEngine(portable.New()))
	require.NoError(t, err)
	s := newScanner(t, db)
	require.NoError(t, db.Close())

	_, err = s.Scan(db, "a")
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestScanner_ReallocForLargerDatabase(t *testing.T) {
	small := compile(t, NewExpression("a", 0))
	large := compile(t, NewExpression("a", 0), NewExpression("b", 0), NewExpression("c", 0))

	s := newScanner(t, small)
	require.NoError(t, s.AllocScratch(large))

	matches, err := s.Scan(large, "abc")
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = s.Scan(small, "abc")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

type renamedEngine struct {
	*portable.Engine
}

func (renamedEngine) Name() string { return "renamed" }

func TestScanner_ScratchFromAnotherEngine(t *testing.T) {
	db := compile(t, NewExpression("a", 0))
	other, err := Compile([]*Expression{NewExpression("a", 0)}, WithEngine(renamedEngine{portable.New()}))
	require.NoError(t, err)
	defer other.Close()

	s := newScanner(t, db)
	err = s.AllocScratch(other)
	assert.ErrorIs(t, err, ErrInvalidState)
}
