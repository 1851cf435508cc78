package filter

import (
	"log/slog"
	"time"

	"github.com/praetorian-inc/hsfilter/pkg/engine"
	"github.com/praetorian-inc/hsfilter/pkg/hs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DefaultSweepInterval is how often a factory reclaims filters of workers
// that became unreachable.
const DefaultSweepInterval = time.Second

type config struct {
	engine        engine.Engine
	cache         hs.BlobCache
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	sweepInterval time.Duration
}

// Option configures New and NewFactory.
type Option func(*config)

// WithEngine selects the match engine.
func WithEngine(e engine.Engine) Option {
	return func(c *config) { c.engine = e }
}

// WithCache reuses compiled databases across filters and processes.
func WithCache(cache hs.BlobCache) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. The default is the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithSweepInterval sets the factory reclamation interval. Intervals below
// one second are rounded up to one second.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger:        slog.Default(),
		meterProvider: otel.GetMeterProvider(),
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.engine == nil {
		cfg.engine = hs.DefaultEngine()
	}
	return cfg
}

func (c *config) hsOptions() []hs.Option {
	opts := []hs.Option{hs.WithEngine(c.engine), hs.WithLogger(c.logger)}
	if c.cache != nil {
		opts = append(opts, hs.WithCache(c.cache))
	}
	return opts
}
