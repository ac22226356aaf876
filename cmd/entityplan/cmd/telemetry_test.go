package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dbsmedya/entityplan/internal/config"
	"github.com/dbsmedya/entityplan/internal/logger"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, shutdown := newTracerProvider(&config.TelemetryConfig{}, logger.NewNop())

	_, ok := tp.(*sdktrace.TracerProvider)
	assert.False(t, ok, "disabled telemetry should not build an SDK provider")
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_LogsSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.log")
	log, err := logger.New(&config.LoggingConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	tp, shutdown := newTracerProvider(&config.TelemetryConfig{Enabled: true, ServiceName: "entityplan-test"}, log)
	_, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)

	_, span := tp.Tracer("test").Start(context.Background(), "planner.run")
	span.SetAttributes(attribute.Int("records", 3))
	span.End()

	require.NoError(t, shutdown(context.Background()))
	_ = log.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Span finished"`)
	assert.Contains(t, string(content), `"span":"planner.run"`)
	assert.Contains(t, string(content), `"records":"3"`)
	assert.Regexp(t, `"trace_id":"[0-9a-f]{32}"`, string(content))
}
