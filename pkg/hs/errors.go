package hs

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
)

var (
	// ErrInvalidState is wrapped by every misuse error: use after close,
	// recursive scans and scanning before scratch allocation.
	ErrInvalidState = errors.New("invalid state")

	// ErrIDConflict reports duplicate ids, or a mix of expressions with and
	// without ids, in one database.
	ErrIDConflict = errors.New("expression id conflict")

	// ErrExpressionNotFound is returned by Database.Expression for unknown ids.
	ErrExpressionNotFound = errors.New("expression not found")

	ErrDatabaseClosed      = fmt.Errorf("%w: database is closed", ErrInvalidState)
	ErrScannerClosed       = fmt.Errorf("%w: scanner is closed", ErrInvalidState)
	ErrScratchNotAllocated = fmt.Errorf("%w: scratch space has not been allocated", ErrInvalidState)
	ErrRecursiveScan       = fmt.Errorf("%w: recursive scanning not supported", ErrInvalidState)
)

// CompileError reports an expression the engine could not compile.
// Expression is nil when the failure concerns the input as a whole.
type CompileError struct {
	Message    string
	Expression *Expression
}

func (e *CompileError) Error() string {
	if e.Expression == nil {
		return "compile error: " + e.Message
	}
	return fmt.Sprintf("compile error in expression %q: %s", e.Expression.Pattern(), e.Message)
}

// EngineError wraps a failure reported by the match engine. It unwraps to the
// engine.Status when the engine supplied one.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Temporary reports whether the engine failure is resource related and the
// operation may succeed if retried after freeing resources.
func (e *EngineError) Temporary() bool {
	var status engine.Status
	return errors.As(e.Err, &status) && status.Temporary()
}

// engineError converts an error returned by an engine call. Compile errors
// are resolved against exprs so callers get the original Expression.
func engineError(op string, err error, exprs []*Expression) error {
	var ce *engine.CompileError
	if errors.As(err, &ce) {
		compileErr := &CompileError{Message: ce.Message}
		if ce.Index >= 0 && ce.Index < len(exprs) {
			compileErr.Expression = exprs[ce.Index]
		}
		return compileErr
	}
	return &EngineError{Op: op, Err: err}
}
