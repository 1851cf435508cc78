package filter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/robfig/cron/v3"
)

// ErrFactoryClosed is returned by Get after the factory was closed.
var ErrFactoryClosed = fmt.Errorf("%w: pattern filter factory is closed", hs.ErrInvalidState)

var (
	workerSeq  atomic.Uint64
	factorySeq atomic.Uint64
)

// Worker identifies the goroutine a filter is bound to. A goroutine creates
// one with NewWorker and keeps it for as long as it filters. Filters obtained
// for a worker live as long as the worker does.
type Worker struct {
	id   uint64
	name string

	mu      sync.Mutex
	filters map[uint64]any
}

// NewWorker returns a fresh worker handle.
func NewWorker() *Worker {
	id := workerSeq.Add(1)
	return &Worker{
		id:      id,
		name:    fmt.Sprintf("worker-%d", id),
		filters: make(map[uint64]any),
	}
}

// String returns the worker name.
func (w *Worker) String() string { return w.name }

// Factory hands out one PatternFilter per Worker over a shared candidate
// set. Filters of workers that become unreachable are closed by a periodic
// sweep.
type Factory[T any] struct {
	id      uint64
	plan    *plan[T]
	cfg     *config
	metrics *metrics

	closed atomic.Bool

	mu      sync.Mutex
	tracked map[*resources]struct{}

	pendingMu sync.Mutex
	pending   []*resources

	entry cron.EntryID
}

// NewFactory validates candidates once and prepares a factory for them.
func NewFactory[T any](candidates []T, mapper PatternFunc[T], opts ...Option) (*Factory[T], error) {
	if len(candidates) == 0 {
		return nil, errors.New("candidates must not be empty")
	}
	for i, c := range candidates {
		if isNil(c) {
			return nil, fmt.Errorf("candidate %d is nil", i)
		}
	}

	cfg := newConfig(opts)
	pl, err := newPlan(slices.Clone(candidates), mapper, cfg)
	if err != nil {
		return nil, err
	}

	f := &Factory[T]{
		id:      factorySeq.Add(1),
		plan:    pl,
		cfg:     cfg,
		metrics: newMetrics(cfg.meterProvider),
		tracked: make(map[*resources]struct{}),
	}
	f.entry = sharedSweeper().Schedule(cron.Every(cfg.sweepInterval), cron.FuncJob(f.reclaim))
	return f, nil
}

// Get returns the filter bound to w, creating it on first use. Closing the
// returned filter does nothing; it is released with the worker or the
// factory.
func (f *Factory[T]) Get(w *Worker) (ScopedFilter[T], error) {
	if w == nil {
		return nil, errors.New("worker must not be nil")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if f.closed.Load() {
		// Let the closed filter be collected even if w lives on.
		delete(w.filters, f.id)
		return nil, ErrFactoryClosed
	}

	if existing, ok := w.filters[f.id]; ok {
		return proxy[T]{existing.(*PatternFilter[T])}, nil
	}

	pf, err := openFilter(f.plan, f.cfg, f.metrics)
	if err != nil {
		return nil, err
	}
	if err := f.track(pf); err != nil {
		_ = pf.Close()
		return nil, err
	}
	w.filters[f.id] = pf

	f.metrics.created.Add(context.Background(), 1)
	f.cfg.logger.Debug("created pattern filter", "worker", w.name, "factory", f.id)
	return proxy[T]{pf}, nil
}

func (f *Factory[T]) track(pf *PatternFilter[T]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed.Load() {
		return ErrFactoryClosed
	}
	f.tracked[pf.res] = struct{}{}
	runtime.AddCleanup(pf, f.enqueue, pf.res)
	return nil
}

// enqueue runs on the runtime's cleanup goroutine once a filter is
// unreachable. It must not block.
func (f *Factory[T]) enqueue(res *resources) {
	if f.closed.Load() {
		return
	}
	f.pendingMu.Lock()
	f.pending = append(f.pending, res)
	f.pendingMu.Unlock()
}

// reclaim closes every filter queued since the last sweep.
func (f *Factory[T]) reclaim() {
	f.pendingMu.Lock()
	queue := f.pending
	f.pending = nil
	f.pendingMu.Unlock()

	for _, res := range queue {
		f.mu.Lock()
		_, ok := f.tracked[res]
		delete(f.tracked, res)
		f.mu.Unlock()
		if !ok {
			continue
		}
		f.release(res)
	}
}

func (f *Factory[T]) release(res *resources) {
	defer func() {
		if r := recover(); r != nil {
			f.cfg.logger.Error("panic while releasing pattern filter", "factory", f.id, "panic", r)
		}
	}()

	if err := res.close(); err != nil {
		f.cfg.logger.Warn("releasing pattern filter", "factory", f.id, "error", err)
		return
	}
	f.metrics.reclaimed.Add(context.Background(), 1)
}

// Close releases every filter handed out so far. Filters previously returned
// by Get fail with ErrFilterClosed afterwards.
func (f *Factory[T]) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	f.mu.Lock()
	tracked := f.tracked
	f.tracked = make(map[*resources]struct{})
	f.mu.Unlock()

	var errs []error
	for res := range tracked {
		errs = append(errs, res.close())
	}

	sharedSweeper().Remove(f.entry)
	f.reclaim()
	return errors.Join(errs...)
}

// trackedCount reports how many filters are still alive.
func (f *Factory[T]) trackedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracked)
}

// proxy shields the shared filter from Close by its callers.
type proxy[T any] struct {
	filter *PatternFilter[T]
}

func (p proxy[T]) Filter(input string) ([]T, error) { return p.filter.Filter(input) }

func (proxy[T]) Close() error { return nil }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
