// Package store persists compiled pattern databases so they can be reused
// across runs. Every Store satisfies hs.BlobCache.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store provides persistence for compiled database blobs.
// This interface abstracts the underlying storage implementation,
// allowing for different backends (memory, SQLite, bbolt).
type Store interface {
	// Get returns the blob stored under key. ok is false when there is none.
	Get(key string) (blob []byte, ok bool, err error)

	// Put stores blob under key, replacing any previous value.
	Put(key string, blob []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists every stored key in ascending order.
	Keys() ([]string, error)

	// Close closes the underlying storage.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path selects the backend:
	//   ":memory:"              in-process map
	//   "*.db", "*.sqlite"      SQLite file
	//   "*.bolt"                bbolt file
	Path string
}

// New creates a Store for cfg.Path.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == ":memory:" {
		return NewMemory(), nil
	}

	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(cfg.Path)
	case ".bolt":
		return NewBolt(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported cache path %q: use :memory:, .db, .sqlite or .bolt", cfg.Path)
	}
}
