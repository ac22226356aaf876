package planner

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dbsmedya/entityplan/internal/plan"
)

const instrumentationName = "github.com/dbsmedya/entityplan/internal/planner"

// telemetry holds the tracer and metric instruments of a Planner.
type telemetry struct {
	tracer trace.Tracer

	// records counts planned records by classification
	records metric.Int64Counter

	// slotsDerived counts slots whose identifiers were derived, not reused
	slotsDerived metric.Int64Counter

	// runDuration records planning run duration in milliseconds
	runDuration metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	t := &telemetry{tracer: tp.Tracer(instrumentationName)}
	var err error

	t.records, err = meter.Int64Counter(
		"entityplan.records",
		metric.WithDescription("Records planned, by classification"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}

	t.slotsDerived, err = meter.Int64Counter(
		"entityplan.slots.derived",
		metric.WithDescription("Slots whose identifiers were derived in a run"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create slots counter: %w", err)
	}

	t.runDuration, err = meter.Float64Histogram(
		"entityplan.run.duration",
		metric.WithDescription("Planning run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return t, nil
}

func (t *telemetry) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// end closes a span, recording err when non-nil.
func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *telemetry) recordRun(ctx context.Context, res *Result, elapsed time.Duration) {
	for class, n := range res.Stats.Records {
		if n == 0 {
			continue
		}
		t.records.Add(ctx, int64(n), metric.WithAttributes(attribute.String("classification", string(class))))
	}
	if res.Stats.SlotsDerived > 0 {
		t.slotsDerived.Add(ctx, int64(res.Stats.SlotsDerived))
	}
	t.runDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0,
		metric.WithAttributes(attribute.Bool("committed", res.Committed)))
}

func runAttributes(res *Result) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("entityplan.records.new", res.Stats.Records[plan.New]),
		attribute.Int("entityplan.records.unchanged", res.Stats.Records[plan.Unchanged]),
		attribute.Int("entityplan.records.changed", res.Stats.Records[plan.Changed]),
		attribute.Int("entityplan.records.removed", res.Stats.Records[plan.Removed]),
		attribute.Int("entityplan.records.failed", len(res.Report.Failures)),
		attribute.Int("entityplan.slots", res.Plan.SlotCount()),
		attribute.Int("entityplan.changes", res.Changes.Size()),
	}
}
