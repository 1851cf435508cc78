// Package filter narrows a large set of regular expressions down to the few
// that could match an input.
//
// A PatternFilter compiles every candidate it can into one database and
// reports, per input, the candidates whose prefilter expression matched plus
// every candidate the engine could not represent. Exact verification is left
// to the caller's regex engine.
//
// A PatternFilter is bound to one goroutine at a time. Factory hands out one
// filter per Worker and reclaims filters of workers that are gone.
package filter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"golang.org/x/sync/errgroup"
)

// ErrFilterClosed is returned by Filter after the filter was closed.
var ErrFilterClosed = fmt.Errorf("%w: pattern filter is closed", hs.ErrInvalidState)

// ScopedFilter is the filter handed out by a Factory.
type ScopedFilter[T any] interface {
	// Filter returns the candidates that may match input.
	Filter(input string) ([]T, error)
	Close() error
}

// plan is the partition of candidates computed once and shared by every
// filter built from it.
type plan[T any] struct {
	filterable    []T
	notFilterable []T
	expressions   []*hs.Expression
}

// newPlan maps and validates candidates in parallel. Candidates the engine
// rejects become not-filterable; filterable ones get dense ids in input
// order.
func newPlan[T any](candidates []T, mapper PatternFunc[T], cfg *config) (*plan[T], error) {
	if mapper == nil {
		return nil, errors.New("pattern mapper must not be nil")
	}

	patterns := make([]Pattern, len(candidates))
	valid := make([]bool, len(candidates))
	hsOpts := cfg.hsOptions()

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range candidates {
		g.Go(func() error {
			p, err := mapper(c)
			if err != nil {
				return fmt.Errorf("mapping candidate %d: %w", i, err)
			}
			patterns[i] = p
			valid[i] = ExpressionFor(p, 0).Validate(hsOpts...) == nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pl := &plan[T]{}
	for i, c := range candidates {
		if !valid[i] {
			pl.notFilterable = append(pl.notFilterable, c)
			continue
		}
		pl.expressions = append(pl.expressions, ExpressionFor(patterns[i], uint(len(pl.filterable))))
		pl.filterable = append(pl.filterable, c)
	}

	cfg.logger.Debug("partitioned candidates",
		"filterable", len(pl.filterable),
		"not_filterable", len(pl.notFilterable))
	return pl, nil
}

// resources is what a filter owns natively. It is kept apart from the filter
// so it can be released without holding a reference to the filter itself.
type resources struct {
	mu      sync.Mutex
	closed  atomic.Bool
	db      *hs.Database
	scanner *hs.Scanner
}

// close releases the scanner and database at most once.
func (r *resources) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if r.scanner != nil {
		errs = append(errs, r.scanner.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// PatternFilter shortlists candidates for an input.
type PatternFilter[T any] struct {
	plan    *plan[T]
	res     *resources
	metrics *metrics
}

// New builds a filter over candidates. mapper turns each candidate into the
// Pattern to prefilter with.
func New[T any](candidates []T, mapper PatternFunc[T], opts ...Option) (*PatternFilter[T], error) {
	cfg := newConfig(opts)
	pl, err := newPlan(candidates, mapper, cfg)
	if err != nil {
		return nil, err
	}
	return openFilter(pl, cfg, newMetrics(cfg.meterProvider))
}

func openFilter[T any](pl *plan[T], cfg *config, m *metrics) (*PatternFilter[T], error) {
	res := &resources{}
	if len(pl.expressions) > 0 {
		db, err := hs.Compile(pl.expressions, cfg.hsOptions()...)
		if err != nil {
			return nil, fmt.Errorf("compiling candidates: %w", err)
		}

		scanner := hs.NewScanner()
		if err := scanner.AllocScratch(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("allocating scratch: %w", err)
		}
		res.db = db
		res.scanner = scanner
	}

	return &PatternFilter[T]{plan: pl, res: res, metrics: m}, nil
}

// Filter returns the candidates whose prefilter matched input, in engine
// report order and possibly repeated, followed by every not-filterable
// candidate.
func (f *PatternFilter[T]) Filter(input string) ([]T, error) {
	r := f.res
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrFilterClosed
	}
	f.metrics.scans.Add(context.Background(), 1)

	out := make([]T, 0, len(f.plan.notFilterable)+4)
	if r.db != nil {
		// The scan only reads the input.
		data := unsafe.Slice(unsafe.StringData(input), len(input))
		err := r.scanner.ScanBytes(r.db, data, func(expr *hs.Expression, _, _ uint64) bool {
			id, _ := expr.ID()
			out = append(out, f.plan.filterable[id])
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("filtering input: %w", err)
		}
	}
	return append(out, f.plan.notFilterable...), nil
}

// Filterable returns the candidates that were compiled, in id order.
func (f *PatternFilter[T]) Filterable() []T {
	return append([]T(nil), f.plan.filterable...)
}

// NotFilterable returns the candidates the engine could not represent. They
// are part of every Filter result.
func (f *PatternFilter[T]) NotFilterable() []T {
	return append([]T(nil), f.plan.notFilterable...)
}

// Close releases the database and scanner. It is safe to call more than
// once and from several goroutines.
func (f *PatternFilter[T]) Close() error {
	return f.res.close()
}
