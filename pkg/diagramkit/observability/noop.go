package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

// RecordConvert does nothing.
func (NoopMetrics) RecordConvert(_ context.Context, _, _ string, _ time.Duration, _ error) {}

// RecordArrowsSkipped does nothing.
func (NoopMetrics) RecordArrowsSkipped(_ context.Context, _ string, _ int) {}

// RecordExecutionUpdate does nothing.
func (NoopMetrics) RecordExecutionUpdate(_ context.Context, _ string) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartConvertSpan returns ctx unchanged and a no-op span.
func (NoopSpanManager) StartConvertSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
