package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var _ hs.BlobCache = Store(nil)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	stores := map[string]Store{}
	for name, path := range map[string]string{
		"memory": ":memory:",
		"sqlite": filepath.Join(dir, "cache.db"),
		"bolt":   filepath.Join(dir, "cache.bolt"),
	} {
		s, err := New(Config{Path: path})
		require.NoError(t, err, name)
		stores[name] = s
	}
	return stores
}

func TestStore_PutGetDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put("b", []byte{1, 2, 3}))
			require.NoError(t, s.Put("a", []byte("first")))
			require.NoError(t, s.Put("a", []byte("second")))

			blob, ok, err := s.Get("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("second"), blob)

			keys, err := s.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, keys)

			require.NoError(t, s.Delete("a"))
			require.NoError(t, s.Delete("a"))
			_, ok, err = s.Get("a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_ReturnedBlobIsACopy(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			in := []byte("blob")
			require.NoError(t, s.Put("k", in))
			in[0] = 'X'

			out, _, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("blob"), out)
			out[0] = 'Y'

			again, _, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("blob"), again)
		})
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{filepath.Join(dir, "c.sqlite"), filepath.Join(dir, "c.bolt")} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			s, err := New(Config{Path: path})
			require.NoError(t, err)
			require.NoError(t, s.Put("key", []byte("value")))
			require.NoError(t, s.Close())

			s, err = New(Config{Path: path})
			require.NoError(t, err)
			defer s.Close()

			blob, ok, err := s.Get("key")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("value"), blob)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Path: filepath.Join(t.TempDir(), "cache.txt")})
	assert.ErrorContains(t, err, "unsupported cache path")
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Close())

	_, _, err := s.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put("k", nil), ErrClosed)
	assert.ErrorIs(t, s.Delete("k"), ErrClosed)
}

func TestCreateSchema(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	require.NoError(t, CreateSchema(db))
	require.NoError(t, CreateSchema(db))

	var version int
	require.NoError(t, db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, SchemaVersion, version)

	_, err = db.Exec("UPDATE schema_version SET version = ?", SchemaVersion+1)
	require.NoError(t, err)
	assert.ErrorContains(t, CreateSchema(db), "newer than supported")
}

func TestStore_AsCompileCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compiled.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	exprs := []*hs.Expression{
		hs.NewExpression("foo", hs.SomLeftMost),
		hs.NewExpression(`\d+`, hs.SomLeftMost),
	}
	opts := []hs.Option{hs.WithEngine(portable.New()), hs.WithCache(s)}

	db, err := hs.Compile(exprs, opts...)
	require.NoError(t, err)
	defer db.Close()

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	again, err := hs.Compile(exprs, opts...)
	require.NoError(t, err)
	defer again.Close()

	scanner := hs.NewScanner()
	require.NoError(t, scanner.AllocScratch(again))
	defer scanner.Close()

	matches, err := scanner.Scan(again, "foo 42")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
