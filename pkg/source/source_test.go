package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// collect walks config and returns item names mapped to content.
func collect(t *testing.T, config Config) map[string]string {
	t.Helper()
	var mu sync.Mutex
	got := map[string]string{}
	err := NewWalker(config).Walk(context.Background(), func(_ context.Context, item Item) error {
		mu.Lock()
		defer mu.Unlock()
		rel, err := filepath.Rel(config.Root, item.Path)
		require.NoError(t, err)
		got[filepath.ToSlash(Item{Path: rel, Member: item.Member}.Name())] = string(item.Content)
		return nil
	})
	require.NoError(t, err)
	return got
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestWalker_Filters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("alpha"))
	writeFile(t, filepath.Join(root, "sub", "b.txt"), []byte("beta"))
	writeFile(t, filepath.Join(root, ".hidden", "c.txt"), []byte("gamma"))
	writeFile(t, filepath.Join(root, ".env"), []byte("SECRET=1"))
	writeFile(t, filepath.Join(root, "build", "out.txt"), []byte("ignored"))
	writeFile(t, filepath.Join(root, "debug.log"), []byte("ignored"))
	writeFile(t, filepath.Join(root, "blob.bin"), []byte{0x01, 0x00, 0x02})
	writeFile(t, filepath.Join(root, "big.txt"), bytes.Repeat([]byte("x"), 100))
	writeFile(t, filepath.Join(root, ".gitignore"), []byte("build/\n*.log\n"))

	got := collect(t, Config{Root: root, MaxFileSize: 50, Readers: 2})
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, keys(got))
	assert.Equal(t, "beta", got["sub/b.txt"])

	got = collect(t, Config{Root: root, IncludeHidden: true})
	assert.Equal(t, []string{".env", ".gitignore", ".hidden/c.txt", "a.txt", "big.txt", "sub/b.txt"}, keys(got))
}

func TestWalker_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	writeFile(t, path, []byte("only"))

	var items []Item
	err := NewWalker(Config{Root: path}).Walk(context.Background(), func(_ context.Context, item Item) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, path, items[0].Path)
	assert.Equal(t, "only", string(items[0].Content))
}

func TestWalker_Extract(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bundle.zip"), zipBytes(t, map[string]string{
		"conf/app.ini": "token=abc",
		"logo.png":     "\x89PNG\x00\x00",
		"empty/":       "",
	}))
	writeFile(t, filepath.Join(root, "report.docx"), zipBytes(t, map[string]string{
		"word/document.xml": `<w:document><w:body><w:p><w:t>hello</w:t></w:p><w:p><w:t> world  again </w:t></w:p></w:body></w:document>`,
		"word/styles.xml":   `<w:styles>ignored</w:styles>`,
	}))

	assert.Empty(t, collect(t, Config{Root: root}))

	got := collect(t, Config{Root: root, Extract: []string{"zip", "DOCX"}})
	assert.Equal(t, map[string]string{
		"bundle.zip!conf/app.ini":      "token=abc",
		"report.docx!word/document.xml": "hello world again",
	}, got)
}

func TestWalker_CallbackError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))

	boom := errors.New("boom")
	err := NewWalker(Config{Root: root}).Walk(context.Background(), func(context.Context, Item) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWalker_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWalker(Config{Root: root}).Walk(ctx, func(context.Context, Item) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalker_MissingRoot(t *testing.T) {
	err := NewWalker(Config{Root: filepath.Join(t.TempDir(), "nope")}).Walk(context.Background(), func(context.Context, Item) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "xlsx", Kind("a/B.XLSX"))
	assert.Equal(t, "7z", Kind("x.7z"))
	assert.Equal(t, "pdf", Kind("doc.pdf"))
	assert.Equal(t, "", Kind("notes.txt"))
}

func TestExtract(t *testing.T) {
	parts, err := Extract("xlsx", zipBytes(t, map[string]string{
		"xl/sharedStrings.xml":     `<sst><si><t>key</t></si><si><t>AKIA</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<worksheet><c><v>42</v></c></worksheet>`,
		"xl/styles.xml":            `<styleSheet>skip</styleSheet>`,
	}))
	require.NoError(t, err)
	texts := map[string]string{}
	for _, p := range parts {
		texts[p.Name] = string(p.Content)
	}
	assert.Equal(t, map[string]string{"xl/sharedStrings.xml": "key AKIA", "xl/worksheets/sheet1.xml": "42"}, texts)

	for _, kind := range []string{"pdf", "7z", "zip"} {
		_, err := Extract(kind, []byte("not a document"))
		assert.Error(t, err, kind)
	}
	_, err = Extract("rar", nil)
	assert.ErrorContains(t, err, "unsupported document kind")
}

func TestItemName(t *testing.T) {
	assert.Equal(t, "a.txt", Item{Path: "a.txt"}.Name())
	assert.Equal(t, "a.zip!b.txt", Item{Path: "a.zip", Member: "b.txt"}.Name())
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", collapseSpace("  a \n\t b   c  "))
	assert.Equal(t, "", collapseSpace(" \n "))
}
