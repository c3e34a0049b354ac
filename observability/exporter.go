package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/benz9527/xrbtree/lib/infra"
)

type MetricsExporterType string

const (
	NoopMetrics       MetricsExporterType = "none"
	ConsoleMetrics    MetricsExporterType = "console"
	PrometheusMetrics MetricsExporterType = "prometheus"
)

func ParseMetricsExporterType(typ string) (MetricsExporterType, error) {
	switch t := MetricsExporterType(strings.ToLower(strings.TrimSpace(typ))); t {
	case "", NoopMetrics:
		return NoopMetrics, nil
	case ConsoleMetrics, PrometheusMetrics:
		return t, nil
	default:
	}
	return NoopMetrics, infra.NewErrorStack("unknown metrics exporter " + typ)
}

func noopShutdown(context.Context) error { return nil }

// NewConsoleMetricsExporter serves for test/dev environment.
// The metrics are flushed one more time on shutdown.
func NewConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (func(ctx context.Context) error, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	callback := mp.Shutdown
	otel.SetMeterProvider(mp)
	return callback, nil
}

// NewPrometheusMetricsExporter serves for the product environment and the
// stats metrics are fetched by HTTP from the reg.
func NewPrometheusMetricsExporter(reg promclient.Registerer) (func(ctx context.Context) error, error) {
	opts := make([]prometheus.Option, 0, 1)
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, err
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	callback := mp.Shutdown
	otel.SetMeterProvider(mp)
	return callback, nil
}

// NewMetricsExporter installs the global meter provider by typ.
// NoopMetrics keeps the otel default provider.
func NewMetricsExporter(typ MetricsExporterType, interval time.Duration, reg promclient.Registerer) (func(ctx context.Context) error, error) {
	switch typ {
	case ConsoleMetrics:
		if interval <= 0 {
			interval = 10 * time.Second
		}
		return NewConsoleMetricsExporter(interval, interval, stdoutmetric.WithPrettyPrint())
	case PrometheusMetrics:
		return NewPrometheusMetricsExporter(reg)
	default:
	}
	return noopShutdown, nil
}
