// Package engine defines the contract between hsfilter and a regex match
// engine: compile a set of patterns into a database, allocate scratch space,
// and scan a block of bytes reporting (id, from, to) tuples.
//
// Two implementations exist. The portable engine (pkg/engine/portable) is the
// default and needs no cgo. The Hyperscan engine (pkg/engine/hyperscan) is
// available when building with CGO_ENABLED=1 and -tags=hyperscan.
package engine

// Flag is a compile flag bit. Values match Hyperscan's HS_FLAG_* constants so
// flag bitmasks can be persisted and passed through without translation.
type Flag uint

const (
	Caseless    Flag = 1
	DotAll      Flag = 2
	MultiLine   Flag = 4
	SingleMatch Flag = 8
	AllowEmpty  Flag = 16
	Utf8        Flag = 32
	UCP         Flag = 64
	Prefilter   Flag = 128
	SomLeftMost Flag = 256
	Combination Flag = 512
	Quiet       Flag = 1024
)

// Pattern is a single expression handed to an engine.
type Pattern struct {
	Expression string
	Flags      Flag
	ID         uint
}

// MatchHandler receives a match. from is only meaningful when the pattern was
// compiled with SomLeftMost; to is exclusive. Returning false stops the scan.
type MatchHandler func(id uint, from, to uint64) bool

// Database is a compiled, immutable set of patterns. It may be scanned from
// many goroutines at once, each with its own Scratch.
type Database interface {
	Size() (int, error)
	Close() error
}

// Scratch is per-scan working memory. Only one scan may use a Scratch at a
// time.
type Scratch interface {
	Size() (int, error)
	Close() error
}

// Engine compiles and scans pattern databases.
type Engine interface {
	// Name identifies the engine, e.g. "portable" or "hyperscan".
	Name() string

	// Version identifies the engine build. Serialized databases are only
	// guaranteed to load on an engine with the same name and version.
	Version() string

	// Validate checks that a single pattern would compile.
	Validate(p Pattern) error

	// Compile builds a database. A malformed pattern yields *CompileError.
	Compile(patterns []Pattern) (Database, error)

	// AllocScratch allocates scratch for db, or grows s so that it can also
	// be used with db. It returns the scratch to use from now on.
	AllocScratch(db Database, s Scratch) (Scratch, error)

	// Scan runs db over data. It returns nil when the scan ran to completion
	// and ErrScanTerminated when the handler asked to stop.
	Scan(db Database, data []byte, s Scratch, handler MatchHandler) error

	Serialize(db Database) ([]byte, error)
	Deserialize(data []byte) (Database, error)
}

// PatternLister is implemented by engines that can report the ids a
// database was compiled with. Loaders use it to reject a database that does
// not belong to the expressions stored next to it.
type PatternLister interface {
	PatternIDs(db Database) ([]uint, error)
}
