// Package observability provides structured logging helpers, metrics, and
// tracing for diagram conversion and execution monitoring.
//
// Logging uses slog. Metrics and tracing use OpenTelemetry and both have
// no-op implementations for when they are disabled. Every helper accepts
// a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds execution context to a logger.
func EnrichLogger(logger *slog.Logger, executionID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("execution_id", executionID))
}

// LogConvertStart logs the start of a format conversion.
func LogConvertStart(logger *slog.Logger, from, to string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("conversion starting",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogConvertComplete logs a successful conversion.
func LogConvertComplete(logger *slog.Logger, from, to string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("conversion completed",
		slog.String("from", from),
		slog.String("to", to),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes", nodeCount),
	)
}

// LogConvertError logs a failed conversion.
func LogConvertError(logger *slog.Logger, from, to string, err error) {
	if logger == nil {
		return
	}
	logger.Error("conversion failed",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("error", err.Error()),
	)
}

// LogArrowSkipped logs an arrow dropped during import because an endpoint
// did not resolve. Import continues.
func LogArrowSkipped(logger *slog.Logger, index int, source, target, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("arrow skipped",
		slog.Int("index", index),
		slog.String("source", source),
		slog.String("target", target),
		slog.String("reason", reason),
	)
}

// LogImportComplete logs the element counts of a finished import.
func LogImportComplete(logger *slog.Logger, nodes, arrows, persons, apiKeys, skipped int) {
	if logger == nil {
		return
	}
	logger.Info("import completed",
		slog.Int("nodes", nodes),
		slog.Int("arrows", arrows),
		slog.Int("persons", persons),
		slog.Int("api_keys", apiKeys),
		slog.Int("arrows_skipped", skipped),
	)
}

// LogExecutionUpdate logs one update applied to a monitored execution.
func LogExecutionUpdate(logger *slog.Logger, executionID, kind, nodeID string) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("execution_id", executionID),
		slog.String("kind", kind),
	}
	if nodeID != "" {
		attrs = append(attrs, slog.String("node_id", nodeID))
	}
	logger.Debug("execution update", attrs...)
}

// TimedOperation returns a function reporting the elapsed milliseconds.
//
//	done := TimedOperation()
//	// ... work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
