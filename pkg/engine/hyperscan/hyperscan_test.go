//go:build cgo && hyperscan

package hyperscan

import (
	"errors"
	"testing"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func TestHyperscan_CompileAndScan(t *testing.T) {
	e := newEngine(t)

	db, err := e.Compile([]engine.Pattern{
		{Expression: "Te?st", Flags: engine.Caseless | engine.SomLeftMost},
	})
	require.NoError(t, err)
	defer db.Close()

	s, err := e.AllocScratch(db, nil)
	require.NoError(t, err)
	defer s.Close()

	type tuple struct{ from, to uint64 }
	var got []tuple
	err = e.Scan(db, []byte("Dies ist ein Test tst."), s, func(id uint, from, to uint64) bool {
		got = append(got, tuple{from, to})
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []tuple{{13, 17}, {18, 21}}, got)
}

func TestHyperscan_CompileErrorIndex(t *testing.T) {
	e := newEngine(t)

	_, err := e.Compile([]engine.Pattern{
		{Expression: "ok", ID: 0},
		{Expression: "a(b", ID: 1},
	})

	var ce *engine.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Index)
}

func TestHyperscan_Terminated(t *testing.T) {
	e := newEngine(t)

	db, err := e.Compile([]engine.Pattern{{Expression: "a"}})
	require.NoError(t, err)
	defer db.Close()
	s, err := e.AllocScratch(db, nil)
	require.NoError(t, err)
	defer s.Close()

	err = e.Scan(db, []byte("aaa"), s, func(uint, uint64, uint64) bool { return false })
	assert.ErrorIs(t, err, engine.ErrScanTerminated)
}

func TestHyperscan_SerializeRoundTrip(t *testing.T) {
	e := newEngine(t)

	db, err := e.Compile([]engine.Pattern{{Expression: `Word\d+`, Flags: engine.SomLeftMost, ID: 100}})
	require.NoError(t, err)
	defer db.Close()

	blob, err := e.Serialize(db)
	require.NoError(t, err)

	loaded, err := e.Deserialize(blob)
	require.NoError(t, err)
	defer loaded.Close()

	want, err := db.Size()
	require.NoError(t, err)
	got, err := loaded.Size()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHyperscan_DeserializeGarbage(t *testing.T) {
	e := newEngine(t)

	_, err := e.Deserialize([]byte("not a database"))
	assert.Error(t, err)
}
