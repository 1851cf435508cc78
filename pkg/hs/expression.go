package hs

import (
	"fmt"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

// Expression is an immutable pattern with its compile flags, an optional id
// and an optional caller context.
type Expression struct {
	pattern string
	flags   Flag
	id      uint
	hasID   bool
	context any
}

// ExpressionOption configures an Expression.
type ExpressionOption func(*Expression)

// WithID assigns an explicit id. Within one database either every expression
// has an id or none has.
func WithID(id uint) ExpressionOption {
	return func(e *Expression) {
		e.id = id
		e.hasID = true
	}
}

// WithContext attaches an opaque value that is handed back with matches.
func WithContext(ctx any) ExpressionOption {
	return func(e *Expression) {
		e.context = ctx
	}
}

// NewExpression creates an expression.
func NewExpression(pattern string, flags Flag, opts ...ExpressionOption) *Expression {
	e := &Expression{pattern: pattern, flags: flags}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Expression) Pattern() string { return e.pattern }
func (e *Expression) Flags() Flag     { return e.flags }
func (e *Expression) Context() any    { return e.context }

// ID returns the expression id and whether one was set.
func (e *Expression) ID() (uint, bool) { return e.id, e.hasID }

// Equal compares pattern, flags and id. Contexts are ignored.
func (e *Expression) Equal(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.pattern == other.pattern &&
		e.flags == other.flags &&
		e.hasID == other.hasID &&
		e.id == other.id
}

func (e *Expression) String() string {
	if e.hasID {
		return fmt.Sprintf("Expression{id=%d, pattern=%q, flags=%s}", e.id, e.pattern, e.flags)
	}
	return fmt.Sprintf("Expression{pattern=%q, flags=%s}", e.pattern, e.flags)
}

// Validate checks whether the expression compiles on the configured engine.
// An invalid expression yields *CompileError.
func (e *Expression) Validate(opts ...Option) error {
	cfg := newConfig(opts)
	if err := cfg.engine.Validate(e.enginePattern(0)); err != nil {
		return engineError("validate", err, []*Expression{e})
	}
	return nil
}

func (e *Expression) enginePattern(position int) engine.Pattern {
	id := uint(position)
	if e.hasID {
		id = e.id
	}
	return engine.Pattern{
		Expression: e.pattern,
		Flags:      engine.Flag(e.flags),
		ID:         id,
	}
}
