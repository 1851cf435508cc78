// Package source discovers the inputs handed to the scan and filter commands.
package source

import (
	"context"
	"strings"
)

// Item is one piece of text to scan. Member is set for text pulled out of a
// document or archive and names the part it came from.
type Item struct {
	Path    string
	Member  string
	Content []byte
}

// Name identifies the item in output, e.g. "docs/a.zip!secrets.txt".
func (it Item) Name() string {
	if it.Member == "" {
		return it.Path
	}
	return it.Path + "!" + it.Member
}

// Config controls which files a Walker yields.
type Config struct {
	// Root is the file or directory to walk.
	Root string

	// IncludeHidden includes files and directories starting with a dot.
	IncludeHidden bool

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64

	// FollowSymlinks yields symlinked files.
	FollowSymlinks bool

	// Extract lists the document and archive kinds to pull text out of:
	// xlsx, docx, pdf, zip, 7z or all. Other binary files are skipped.
	Extract []string

	// Readers is the number of files read in parallel. Zero uses NumCPU.
	Readers int
}

// Callback receives every item. Returning an error stops the walk. It may be
// called from several goroutines at once.
type Callback func(ctx context.Context, item Item) error

func (c Config) extracts(kind string) bool {
	for _, k := range c.Extract {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "all" || k == kind {
			return true
		}
	}
	return false
}
