//go:build cgo && hyperscan

// Package hyperscan implements engine.Engine on top of Intel Hyperscan (or
// Vectorscan) through the gohs bindings.
package hyperscan

import (
	"errors"
	"fmt"

	hs "github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Name is the engine name recorded in cache keys.
const Name = "hyperscan"

// emptyInput backs scans of zero-length input; the bindings need a non-nil
// buffer.
var emptyInput [1]byte

// Engine scans with Hyperscan block-mode databases.
type Engine struct{}

// New returns a Hyperscan engine.
func New() (*Engine, error) {
	if err := hs.ValidPlatform(); err != nil {
		return nil, fmt.Errorf("hyperscan platform check: %w", mapError(err))
	}
	return &Engine{}, nil
}

// Available reports whether this build carries the Hyperscan engine.
func Available() bool { return true }

func (e *Engine) Name() string { return Name }

func (e *Engine) Version() string { return hs.Version() }

func newPattern(p engine.Pattern) *hs.Pattern {
	flags := p.Flags
	// Prefilter output must be a superset of the exact match, so \d, \w, \s
	// and \b follow Unicode properties just as regexp2 does.
	if flags&engine.Prefilter != 0 && flags&engine.Utf8 != 0 {
		flags |= engine.UCP
	}
	pattern := hs.NewPattern(p.Expression, hs.CompileFlag(flags))
	pattern.Id = int(p.ID)
	return pattern
}

// Validate asks Hyperscan for expression info, which runs the parser and
// flag checks without building a database.
func (e *Engine) Validate(p engine.Pattern) error {
	if _, err := newPattern(p).Info(); err != nil {
		return &engine.CompileError{Index: 0, Message: err.Error()}
	}
	return nil
}

// Compile builds a block-mode database.
func (e *Engine) Compile(patterns []engine.Pattern) (engine.Database, error) {
	if len(patterns) == 0 {
		return nil, &engine.CompileError{Index: -1, Message: "no patterns to compile"}
	}

	hsPatterns := make([]*hs.Pattern, len(patterns))
	for i, p := range patterns {
		hsPatterns[i] = newPattern(p)
	}

	db, err := hs.NewBlockDatabase(hsPatterns...)
	if err == nil {
		return &database{db: db}, nil
	}

	// Hyperscan reports the failing expression through its own error type;
	// locate it by validating patterns one at a time instead.
	if idx := e.findInvalid(patterns); idx >= 0 {
		verr := e.Validate(patterns[idx]).(*engine.CompileError)
		return nil, &engine.CompileError{Index: idx, Message: verr.Message}
	}
	if status, ok := asStatus(err); ok {
		return nil, status
	}
	return nil, &engine.CompileError{Index: -1, Message: err.Error()}
}

func (e *Engine) findInvalid(patterns []engine.Pattern) int {
	for i, p := range patterns {
		if e.Validate(p) != nil {
			return i
		}
	}
	return -1
}

// AllocScratch allocates scratch for db, or reallocates s so it fits db.
func (e *Engine) AllocScratch(db engine.Database, s engine.Scratch) (engine.Scratch, error) {
	d, ok := db.(*database)
	if !ok || d == nil {
		return nil, engine.ErrInvalid
	}

	if s == nil {
		hsScratch, err := hs.NewScratch(d.db)
		if err != nil {
			return nil, mapError(err)
		}
		return &scratch{s: hsScratch}, nil
	}

	sc, ok := s.(*scratch)
	if !ok || sc.s == nil {
		return nil, engine.ErrInvalid
	}
	if err := sc.s.Realloc(d.db); err != nil {
		return nil, mapError(err)
	}
	return sc, nil
}

// Scan runs db over data. A handler that returns false terminates the scan
// and Scan returns engine.ErrScanTerminated.
func (e *Engine) Scan(db engine.Database, data []byte, s engine.Scratch, handler engine.MatchHandler) error {
	d, ok := db.(*database)
	if !ok || d == nil {
		return engine.ErrInvalid
	}
	sc, ok := s.(*scratch)
	if !ok || sc.s == nil {
		return engine.ErrInvalid
	}
	if len(data) == 0 {
		data = emptyInput[:0]
	}

	onMatch := func(id uint, from, to uint64, flags uint, context interface{}) error {
		if !handler(id, from, to) {
			return hs.ErrScanTerminated
		}
		return nil
	}

	if err := d.db.Scan(data, sc.s, onMatch, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// Serialize returns the Hyperscan serialized database.
func (e *Engine) Serialize(db engine.Database) ([]byte, error) {
	d, ok := db.(*database)
	if !ok || d == nil {
		return nil, engine.ErrInvalid
	}
	data, err := d.db.Marshal()
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// Deserialize loads a serialized block database. Databases built by another
// Hyperscan version, platform or mode fail with the matching engine.Status.
func (e *Engine) Deserialize(data []byte) (engine.Database, error) {
	db, err := hs.UnmarshalBlockDatabase(data)
	if err != nil {
		return nil, mapError(err)
	}
	return &database{db: db}, nil
}

type database struct {
	db hs.BlockDatabase
}

func (d *database) Size() (int, error) {
	n, err := d.db.Size()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (d *database) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return mapError(err)
	}
	return nil
}

type scratch struct {
	s *hs.Scratch
}

func (s *scratch) Size() (int, error) {
	n, err := s.s.Size()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *scratch) Close() error {
	if s.s == nil {
		return nil
	}
	err := s.s.Free()
	s.s = nil
	if err != nil {
		return mapError(err)
	}
	return nil
}

var statusByError = []struct {
	err    error
	status engine.Status
}{
	{hs.ErrInvalid, engine.ErrInvalid},
	{hs.ErrNoMemory, engine.ErrNoMemory},
	{hs.ErrScanTerminated, engine.ErrScanTerminated},
	{hs.ErrCompileError, engine.ErrCompiler},
	{hs.ErrDatabaseVersionError, engine.ErrDatabaseVersion},
	{hs.ErrDatabasePlatformError, engine.ErrDatabasePlatform},
	{hs.ErrDatabaseModeError, engine.ErrDatabaseMode},
	{hs.ErrBadAlign, engine.ErrBadAlign},
	{hs.ErrBadAlloc, engine.ErrBadAlloc},
	{hs.ErrScratchInUse, engine.ErrScratchInUse},
	{hs.ErrArchError, engine.ErrArch},
	{hs.ErrInsufficientSpace, engine.ErrInsufficientSpace},
}

func asStatus(err error) (engine.Status, bool) {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status, true
		}
	}
	return 0, false
}

// mapError converts a gohs error into an engine.Status where one applies.
func mapError(err error) error {
	if status, ok := asStatus(err); ok {
		return status
	}
	return err
}
