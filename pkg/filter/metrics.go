package filter

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/praetorian-inc/hsfilter/pkg/filter"

type metrics struct {
	created   metric.Int64Counter
	reclaimed metric.Int64Counter
	scans     metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) *metrics {
	meter := mp.Meter(meterName)

	created, _ := meter.Int64Counter("hsfilter.filter.created",
		metric.WithDescription("Pattern filters created for workers"))
	reclaimed, _ := meter.Int64Counter("hsfilter.filter.reclaimed",
		metric.WithDescription("Pattern filters released after their worker became unreachable"))
	scans, _ := meter.Int64Counter("hsfilter.filter.scans",
		metric.WithDescription("Inputs filtered"))

	return &metrics{
		created:   created,
		reclaimed: reclaimed,
		scans:     scans,
	}
}
