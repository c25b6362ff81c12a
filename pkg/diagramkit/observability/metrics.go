package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records diagramkit metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordConvert records one conversion between formats.
	RecordConvert(ctx context.Context, from, to string, duration time.Duration, err error)

	// RecordArrowsSkipped records arrows dropped by an import.
	RecordArrowsSkipped(ctx context.Context, format string, count int)

	// RecordExecutionUpdate records one update applied to an execution.
	RecordExecutionUpdate(ctx context.Context, kind string)
}

type otelMetrics struct {
	converts         metric.Int64Counter
	convertLatency   metric.Float64Histogram
	convertErrors    metric.Int64Counter
	arrowsSkipped    metric.Int64Counter
	executionUpdates metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("diagramkit")

	converts, err := meter.Int64Counter("diagramkit.convert.count",
		metric.WithDescription("Number of format conversions"),
	)
	if err != nil {
		return nil, err
	}

	convertLatency, err := meter.Float64Histogram("diagramkit.convert.latency_ms",
		metric.WithDescription("Conversion latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	convertErrors, err := meter.Int64Counter("diagramkit.convert.errors",
		metric.WithDescription("Number of failed conversions"),
	)
	if err != nil {
		return nil, err
	}

	arrowsSkipped, err := meter.Int64Counter("diagramkit.import.arrows_skipped",
		metric.WithDescription("Arrows dropped on import because an endpoint did not resolve"),
	)
	if err != nil {
		return nil, err
	}

	executionUpdates, err := meter.Int64Counter("diagramkit.execution.updates",
		metric.WithDescription("Execution updates applied by the monitor"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		converts:         converts,
		convertLatency:   convertLatency,
		convertErrors:    convertErrors,
		arrowsSkipped:    arrowsSkipped,
		executionUpdates: executionUpdates,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails it returns NoopMetrics.
//
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordConvert(ctx context.Context, from, to string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	)
	m.converts.Add(ctx, 1, attrs)
	m.convertLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.convertErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordArrowsSkipped(ctx context.Context, format string, count int) {
	if count <= 0 {
		return
	}
	m.arrowsSkipped.Add(ctx, int64(count), metric.WithAttributes(attribute.String("format", format)))
}

func (m *otelMetrics) RecordExecutionUpdate(ctx context.Context, kind string) {
	m.executionUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
