package hs

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Database is a compiled, immutable set of expressions. It may be scanned
// concurrently by several Scanners. Close releases the compiled artifact;
// every later use fails with ErrDatabaseClosed.
type Database struct {
	eng         engine.Engine
	native      engine.Database
	expressions []*Expression
	byID        map[uint]*Expression // nil when ids are positional
	closed      atomic.Bool
}

// Compile compiles expressions into a Database. Either all expressions carry
// an id or none do; without ids an expression's position is its id.
func Compile(expressions []*Expression, opts ...Option) (*Database, error) {
	cfg := newConfig(opts)

	exprs := append([]*Expression(nil), expressions...)
	byID, err := indexExpressions(exprs)
	if err != nil {
		return nil, err
	}

	patterns := make([]engine.Pattern, len(exprs))
	for i, e := range exprs {
		patterns[i] = e.enginePattern(i)
	}

	var native engine.Database
	if cfg.cache != nil {
		native, err = compileCached(cfg, patterns)
	} else {
		native, err = cfg.engine.Compile(patterns)
	}
	if err != nil {
		return nil, engineError("compile", err, exprs)
	}

	cfg.logger.Debug("compiled database",
		"engine", cfg.engine.Name(),
		"expressions", len(exprs))

	return &Database{
		eng:         cfg.engine,
		native:      native,
		expressions: exprs,
		byID:        byID,
	}, nil
}

// indexExpressions checks the id invariants and returns the id index, or nil
// when ids are positional.
func indexExpressions(exprs []*Expression) (map[uint]*Expression, error) {
	if len(exprs) == 0 {
		return nil, &CompileError{Message: "no expressions to compile"}
	}

	withID := 0
	for i, e := range exprs {
		if e == nil {
			return nil, &CompileError{Message: fmt.Sprintf("expression at position %d is nil", i)}
		}
		if e.hasID {
			withID++
		}
	}

	if withID == 0 {
		return nil, nil
	}
	if withID != len(exprs) {
		return nil, fmt.Errorf("%w: can't mix expressions with and without ids in a single database", ErrIDConflict)
	}

	byID := make(map[uint]*Expression, len(exprs))
	for _, e := range exprs {
		if e.id > math.MaxInt32 {
			return nil, &CompileError{Message: fmt.Sprintf("expression id %d exceeds %d", e.id, math.MaxInt32), Expression: e}
		}
		if _, dup := byID[e.id]; dup {
			return nil, fmt.Errorf("%w: expression id %d must be unique", ErrIDConflict, e.id)
		}
		byID[e.id] = e
	}
	return byID, nil
}

// lookup resolves an engine-reported id.
func (db *Database) lookup(id uint) *Expression {
	if db.byID != nil {
		return db.byID[id]
	}
	if id < uint(len(db.expressions)) {
		return db.expressions[id]
	}
	return nil
}

// Expression returns the expression with the given id (its position when the
// database was compiled without ids).
func (db *Database) Expression(id uint) (*Expression, error) {
	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	e := db.lookup(id)
	if e == nil {
		return nil, fmt.Errorf("%w: id %d", ErrExpressionNotFound, id)
	}
	return e, nil
}

// Expressions returns the compiled expressions in input order.
func (db *Database) Expressions() []*Expression {
	return append([]*Expression(nil), db.expressions...)
}

// Len returns the number of expressions.
func (db *Database) Len() int { return len(db.expressions) }

// Engine returns the engine the database was compiled with.
func (db *Database) Engine() engine.Engine { return db.eng }

// Size returns the size of the compiled artifact in bytes.
func (db *Database) Size() (int, error) {
	if db.closed.Load() {
		return 0, ErrDatabaseClosed
	}
	n, err := db.native.Size()
	if err != nil {
		return 0, &EngineError{Op: "database size", Err: err}
	}
	return n, nil
}

// Close releases the compiled artifact. Closing twice is a no-op.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := db.native.Close(); err != nil {
		return &EngineError{Op: "close database", Err: err}
	}
	return nil
}
