package cmd

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dbsmedya/entityplan/internal/config"
	"github.com/dbsmedya/entityplan/internal/logger"
)

// logSpanExporter writes finished spans to the debug log.
type logSpanExporter struct {
	log *logger.Logger
}

func (e *logSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration", s.EndTime().Sub(s.StartTime()),
			"status", s.Status().Code.String(),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, string(kv.Key), kv.Value.Emit())
		}
		e.log.Debugw("Span finished", fields...)
	}
	return nil
}

func (e *logSpanExporter) Shutdown(context.Context) error {
	return nil
}

// newTracerProvider returns a no-op provider unless telemetry is enabled.
// The returned shutdown flushes pending spans.
func newTracerProvider(cfg *config.TelemetryConfig, log *logger.Logger) (trace.TracerProvider, func(context.Context) error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(&logSpanExporter{log: log})),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown
}
