// Package scanner bundles a compiled pattern set with a prefilter over the
// same patterns for request-at-a-time use.
package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/filter"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"github.com/praetorian-inc/hsfilter/pkg/rule"
)

type config struct {
	engine engine.Engine
	cache  hs.BlobCache
	logger *slog.Logger
}

// Option configures NewCore.
type Option func(*config)

// WithEngine selects the match engine.
func WithEngine(e engine.Engine) Option {
	return func(c *config) { c.engine = e }
}

// WithCache reuses compiled databases.
func WithCache(cache hs.BlobCache) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Core wraps a compiled database and a prefilter factory for the same rules.
// Calls are serialized.
type Core struct {
	mu      sync.Mutex
	db      *hs.Database
	scanner *hs.Scanner
	factory *filter.Factory[*rule.Compiled]
	worker  *filter.Worker
	logger  *slog.Logger
	engine  string
	rules   int
}

// NewCore compiles rules for exact scanning and prepares a prefilter over
// them. Every rule must compile with the selected engine.
func NewCore(rules []*rule.Rule, opts ...Option) (*Core, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.engine == nil {
		cfg.engine = hs.DefaultEngine()
	}
	logger := cfg.logger.With("engine", cfg.engine.Name())

	exprs, err := rule.Expressions(rules)
	if err != nil {
		return nil, err
	}
	hsOpts := []hs.Option{hs.WithEngine(cfg.engine), hs.WithLogger(cfg.logger)}
	filterOpts := []filter.Option{filter.WithEngine(cfg.engine), filter.WithLogger(cfg.logger)}
	if cfg.cache != nil {
		hsOpts = append(hsOpts, hs.WithCache(cfg.cache))
		filterOpts = append(filterOpts, filter.WithCache(cfg.cache))
	}

	db, err := hs.Compile(exprs, hsOpts...)
	if err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}
	s := hs.NewScanner()
	if err := s.AllocScratch(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("allocating scratch: %w", err)
	}

	compiled, err := rule.Compile(rules)
	if err != nil {
		s.Close()
		db.Close()
		return nil, err
	}
	factory, err := filter.NewFactory(compiled, rule.CompiledPattern, filterOpts...)
	if err != nil {
		s.Close()
		db.Close()
		return nil, fmt.Errorf("creating filter factory: %w", err)
	}

	logger.Debug("core ready", "rules", len(rules))
	return &Core{
		db:      db,
		scanner: s,
		factory: factory,
		worker:  filter.NewWorker(),
		logger:  logger,
		engine:  cfg.engine.Name(),
		rules:   len(rules),
	}, nil
}

// Engine names the engine the rules were compiled with.
func (c *Core) Engine() string { return c.engine }

// Len returns the number of rules.
func (c *Core) Len() int { return c.rules }

// Scan scans a single content string
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, err := c.scan(content)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Source: source, Matches: matches}, nil
}

// ScanBatch scans multiple content items. Items that fail to scan are
// logged and skipped.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]ScanResult, 0, len(items))
	total := 0
	for _, item := range items {
		matches, err := c.scan(item.Content)
		if err != nil {
			c.logger.Warn("skipping item", "source", item.Source, "error", err)
			continue
		}
		results = append(results, ScanResult{Source: item.Source, Matches: matches})
		total += len(matches)
	}

	return &BatchScanResult{Results: results, Total: total}, nil
}

// Filter shortlists the rules that could match content and confirms each
// with regexp2.
func (c *Core) Filter(content, source string) (*FilterResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sf, err := c.factory.Get(c.worker)
	if err != nil {
		return nil, err
	}
	shortlist, err := sf.Filter(content)
	if err != nil {
		return nil, err
	}

	res := &FilterResult{Source: source, Candidates: []string{}, Confirmed: []string{}}
	seen := make(map[*rule.Compiled]bool, len(shortlist))
	for _, cand := range shortlist {
		if seen[cand] {
			continue
		}
		seen[cand] = true
		res.Candidates = append(res.Candidates, cand.Rule.Name)

		ok, err := cand.Regexp.MatchString(content)
		if err != nil {
			return nil, fmt.Errorf("verifying %s: %w", cand.Rule.Name, err)
		}
		if ok {
			res.Confirmed = append(res.Confirmed, cand.Rule.Name)
		}
	}
	return res, nil
}

func (c *Core) scan(content string) ([]Match, error) {
	found, err := c.scanner.Scan(c.db, content)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(found))
	for _, m := range found {
		match := Match{Start: m.Start, End: m.End, Text: m.Text, Name: m.Expression.Pattern()}
		if r, ok := m.Expression.Context().(*rule.Rule); ok {
			match.Name = r.Name
		}
		if id, ok := m.Expression.ID(); ok {
			match.ID = &id
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Close releases scanner resources. It is safe to call more than once.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.factory != nil {
		errs = append(errs, c.factory.Close())
	}
	if c.scanner != nil {
		errs = append(errs, c.scanner.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}
