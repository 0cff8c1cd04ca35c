package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SlogExporter writes finished spans as debug log records.
type SlogExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*SlogExporter)(nil)

// NewSlogExporter creates an exporter writing to logger.
func NewSlogExporter(logger *slog.Logger) *SlogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogExporter{logger: logger.With("component", "trace")}
}

// ExportSpans implements sdktrace.SpanExporter. It never fails.
func (e *SlogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		args := []any{
			"span", span.Name(),
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
		}
		if p := span.Parent(); p.IsValid() {
			args = append(args, "parent_span_id", p.SpanID().String())
		}
		for _, kv := range span.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}

		level := slog.LevelDebug
		if st := span.Status(); st.Code == codes.Error {
			level = slog.LevelWarn
			args = append(args, "status", st.Description)
		}
		e.logger.Log(ctx, level, "span finished", args...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *SlogExporter) Shutdown(context.Context) error {
	return nil
}
