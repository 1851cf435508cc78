package hs

import (
	"fmt"
	"log/slog"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/engine/hyperscan"
	"github.com/praetorian-inc/hsfilter/pkg/engine/portable"
)

// ContextFunc rebuilds an expression context when loading a saved database.
type ContextFunc func(pattern string, flags Flag) any

type config struct {
	engine      engine.Engine
	cache       BlobCache
	logger      *slog.Logger
	contextFunc ContextFunc
}

// Option configures Compile, Load and Validate.
type Option func(*config)

// WithEngine selects the match engine. The default is DefaultEngine().
func WithEngine(e engine.Engine) Option {
	return func(c *config) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithCache enables the compiled-blob cache for Compile.
func WithCache(cache BlobCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextFunc sets how Load recreates expression contexts.
func WithContextFunc(fn ContextFunc) Option {
	return func(c *config) {
		c.contextFunc = fn
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.engine == nil {
		cfg.engine = DefaultEngine()
	}
	return cfg
}

// DefaultEngine returns the Hyperscan engine when this build includes it and
// the CPU supports it, and the portable engine otherwise.
func DefaultEngine() engine.Engine {
	if hyperscan.Available() {
		if e, err := hyperscan.New(); err == nil {
			return e
		}
	}
	return portable.New()
}

// EngineByName returns the engine called name. "" and "auto" select
// DefaultEngine().
func EngineByName(name string) (engine.Engine, error) {
	switch name {
	case "", "auto":
		return DefaultEngine(), nil
	case portable.Name:
		return portable.New(), nil
	case hyperscan.Name:
		e, err := hyperscan.New()
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want %s or %s)", name, portable.Name, hyperscan.Name)
	}
}
