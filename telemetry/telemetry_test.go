package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSlogExporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewSlogExporter(logger))))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "scan.run")
	_, child := tracer.Start(ctx, "scan.simulate", trace.WithAttributes(attribute.String("scan.target", "https://api.example.com")))
	child.RecordError(errors.New("boom"))
	child.SetStatus(codes.Error, "boom")
	child.End()
	parent.End()

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "level=WARN")
	assert.Contains(t, lines[0], "span=scan.simulate")
	assert.Contains(t, lines[0], "scan.target=https://api.example.com")
	assert.Contains(t, lines[0], "status=boom")
	assert.Contains(t, lines[0], "parent_span_id="+parent.SpanContext().SpanID().String())

	assert.Contains(t, lines[1], "level=DEBUG")
	assert.Contains(t, lines[1], "span=scan.run")
	assert.NotContains(t, lines[1], "parent_span_id")
}

func TestNewTracerProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tp := NewTracerProvider(Config{ServiceName: "sentinel-test", LogSpans: true}, logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := otel.Tracer("test").Start(context.Background(), "advisor.remediation")
	span.End()

	assert.Contains(t, buf.String(), "span=advisor.remediation")
}

func TestParentContext(t *testing.T) {
	const (
		traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
		spanID  = "00f067aa0ba902b7"
	)

	ctx := ParentContext(context.Background(), traceID, spanID)
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, traceID, sc.TraceID().String())
	assert.Equal(t, spanID, sc.SpanID().String())

	for _, tc := range [][2]string{
		{"", spanID},
		{traceID, ""},
		{"zz", spanID},
		{traceID, "abcd"},
	} {
		ctx := ParentContext(context.Background(), tc[0], tc[1])
		assert.False(t, trace.SpanContextFromContext(ctx).IsValid(), tc)
	}
}
