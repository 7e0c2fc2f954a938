package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer()
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, span)
	span.End()
}

func TestNoopInstruments(t *testing.T) {
	inst := NoopInstruments()
	assert.NotNil(t, inst)
	assert.NotNil(t, inst.ScoreCount)
	assert.NotNil(t, inst.ScoreInvalid)
	assert.NotNil(t, inst.CritiqueDuration)
	assert.NotNil(t, inst.ToolDuration)

	// Should not panic.
	inst.IncrementScoreCount(context.Background(), "validate")
	inst.RecordCritiqueDuration(context.Background(), 100.0)
}

func TestProvider_Nil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Instruments())
}

func TestSpanRecording(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p := &Provider{tp: tp, name: "nlqeval-test"}
	ctx := context.Background()
	_, span := p.Tracer().Start(ctx, "ScoreService.Validate")
	span.SetAttributes(attribute.String("scorer", "validate"))
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ScoreService.Validate", spans[0].Name)
	assert.Equal(t, "nlqeval-test", spans[0].InstrumentationScope.Name)
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inst := (&Provider{mp: mp}).Instruments()

	ctx := context.Background()
	inst.IncrementScoreCount(ctx, "validate")
	inst.IncrementScoreCount(ctx, "validate")
	inst.IncrementScoreCount(ctx, "critique")
	inst.IncrementScoreInvalid(ctx, "critique")
	inst.RecordCritiqueDuration(ctx, 12.5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	count, ok := byName["nlqeval.score.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	perScorer := map[string]int64{}
	for _, dp := range count.DataPoints {
		v, _ := dp.Attributes.Value("scorer")
		perScorer[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"validate": 2, "critique": 1}, perScorer)

	invalid, ok := byName["nlqeval.score.invalid"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, invalid.DataPoints, 1)
	assert.Equal(t, int64(1), invalid.DataPoints[0].Value)

	duration, ok := byName["nlqeval.critique.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
}
