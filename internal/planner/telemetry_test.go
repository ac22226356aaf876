package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dbsmedya/entityplan/internal/record"
)

func tracedPlanner(t *testing.T, st Store) (*Planner, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return newPlanner(t, st,
		WithTracerProvider(tp),
		WithMeterProvider(noop.NewMeterProvider()),
	), sr
}

func spanNames(sr *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestRun_Spans(t *testing.T) {
	p, sr := tracedPlanner(t, &memStore{})

	_, err := p.Run(context.Background(), sampleBatch(), RunOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"planner.fingerprint", "planner.relationships", "planner.commit", "planner.run"},
		spanNames(sr))

	for _, s := range sr.Ended() {
		if s.Name() != "planner.run" {
			continue
		}
		assert.Equal(t, codes.Ok, s.Status().Code)
		attrs := map[string]int64{}
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value.AsInt64()
		}
		assert.Equal(t, int64(3), attrs["entityplan.records.new"])
		assert.Equal(t, int64(3), attrs["entityplan.batch_size"])
	}
}

func TestRun_SpanRecordsError(t *testing.T) {
	p, sr := tracedPlanner(t, &memStore{})

	batch := []*record.Record{record.New("x", "Unknown")}
	_, err := p.Run(context.Background(), batch, RunOptions{})
	require.Error(t, err)

	var found bool
	for _, s := range sr.Ended() {
		if s.Name() == "planner.run" {
			found = true
			assert.Equal(t, codes.Error, s.Status().Code)
			assert.NotEmpty(t, s.Events())
		}
	}
	assert.True(t, found)
	assert.NotContains(t, spanNames(sr), "planner.commit")
}

func TestRun_DryRunSkipsCommitSpan(t *testing.T) {
	p, sr := tracedPlanner(t, &memStore{})

	_, err := p.Run(context.Background(), sampleBatch(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.NotContains(t, spanNames(sr), "planner.commit")
}
