// Package telemetry sets up OpenTelemetry tracing for Sentinel processes.
//
// Spans are exported to the process log through SlogExporter, so a trace
// of a scan or an AI lookup shows up next to the log lines it produced.
package telemetry

import (
	"context"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is used when Config.ServiceName is empty.
const DefaultServiceName = "sentinel"

// Config controls tracing.
type Config struct {
	ServiceName string

	// LogSpans exports finished spans to the logger at debug level.
	LogSpans bool
}

// NewTracerProvider builds a tracer provider, installs it as the global
// provider together with a W3C trace-context propagator, and returns it.
// The caller must Shutdown it.
func NewTracerProvider(cfg Config, logger *slog.Logger) *sdktrace.TracerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", name)))
	if err != nil {
		logger.Warn("failed to merge telemetry resource, using default", "error", err)
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.LogSpans {
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewSlogExporter(logger))))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

// ParentContext returns ctx carrying a remote parent span built from
// hex-encoded IDs, as carried on queued scan jobs. Malformed or empty IDs
// leave ctx unchanged.
func ParentContext(ctx context.Context, traceID, spanID string) context.Context {
	if traceID == "" || spanID == "" {
		return ctx
	}

	tb, err := hex.DecodeString(traceID)
	if err != nil || len(tb) != 16 {
		return ctx
	}
	sb, err := hex.DecodeString(spanID)
	if err != nil || len(sb) != 8 {
		return ctx
	}

	var tid trace.TraceID
	copy(tid[:], tb)
	var sid trace.SpanID
	copy(sid[:], sb)

	return trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
}
