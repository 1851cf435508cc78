package source

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// binaryProbe is how much of a file is checked for NUL bytes.
const binaryProbe = 8192

// Walker yields the files under a root directory.
type Walker struct {
	config Config
	logger *slog.Logger
}

// NewWalker creates a walker for config.
func NewWalker(config Config) *Walker {
	return &Walker{config: config, logger: slog.Default()}
}

// WithLogger replaces the walker logger.
func (w *Walker) WithLogger(logger *slog.Logger) *Walker {
	w.logger = logger
	return w
}

// Walk collects the eligible paths first, in lexical order, then reads them
// in parallel and passes each to fn.
func (w *Walker) Walk(ctx context.Context, fn Callback) error {
	paths, err := w.collect(ctx)
	if err != nil {
		return err
	}
	w.logger.Debug("walk collected files", "root", w.config.Root, "files", len(paths))

	readers := w.config.Readers
	if readers < 1 {
		readers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	pathCh := make(chan string, readers*2)

	g.Go(func() error {
		defer close(pathCh)
		for _, p := range paths {
			select {
			case pathCh <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range readers {
		g.Go(func() error {
			for p := range pathCh {
				if err := w.read(gctx, p, fn); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (w *Walker) collect(ctx context.Context) ([]string, error) {
	root := w.config.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var ignore *gitignore.GitIgnore
	if _, err := os.Stat(filepath.Join(root, ".gitignore")); err == nil {
		ignore, err = gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
		if err != nil {
			return nil, fmt.Errorf("reading .gitignore: %w", err)
		}
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		hidden := !w.config.IncludeHidden && strings.HasPrefix(d.Name(), ".")
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ignored := ignore != nil && ignore.MatchesPath(rel)

		if d.IsDir() {
			ignored = ignored || (ignore != nil && ignore.MatchesPath(rel+"/"))
			if hidden || ignored {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || ignored {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			if !w.config.FollowSymlinks {
				return nil
			}
			if info, err = os.Stat(path); err != nil {
				w.logger.Debug("skipping broken symlink", "path", path)
				return nil
			}
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if w.config.MaxFileSize > 0 && info.Size() > w.config.MaxFileSize {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *Walker) read(ctx context.Context, path string, fn Callback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	kind := Kind(path)
	if kind == "" || !w.config.extracts(kind) {
		if isBinary(content) {
			return nil
		}
		return fn(ctx, Item{Path: path, Content: content})
	}

	parts, err := Extract(kind, content)
	if err != nil {
		w.logger.Warn("skipping document", "path", path, "error", err)
		return nil
	}
	for _, part := range parts {
		if err := fn(ctx, Item{Path: path, Member: part.Name, Content: part.Content}); err != nil {
			return err
		}
	}
	return nil
}

func isBinary(content []byte) bool {
	probe := content[:min(len(content), binaryProbe)]
	return bytes.IndexByte(probe, 0) >= 0
}
