package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/nlqeval"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	ScoreCount       metric.Int64Counter
	ScoreInvalid     metric.Int64Counter
	CritiqueDuration metric.Float64Histogram
	ToolDuration     metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	scoreCount, _ := meter.Int64Counter("nlqeval.score.count",
		metric.WithDescription("Total number of scored samples"),
	)
	scoreInvalid, _ := meter.Int64Counter("nlqeval.score.invalid",
		metric.WithDescription("Number of samples scored INCORRECT"),
	)
	critiqueDuration, _ := meter.Float64Histogram("nlqeval.critique.duration",
		metric.WithDescription("Critic model call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("nlqeval.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		ScoreCount:       scoreCount,
		ScoreInvalid:     scoreInvalid,
		CritiqueDuration: critiqueDuration,
		ToolDuration:     toolDuration,
	}
}

func scorerAttr(scorer string) metric.AddOption {
	return metric.WithAttributes(attribute.String("scorer", scorer))
}

func (i *Instruments) IncrementScoreCount(ctx context.Context, scorer string) {
	i.ScoreCount.Add(ctx, 1, scorerAttr(scorer))
}

func (i *Instruments) IncrementScoreInvalid(ctx context.Context, scorer string) {
	i.ScoreInvalid.Add(ctx, 1, scorerAttr(scorer))
}

func (i *Instruments) RecordCritiqueDuration(ctx context.Context, ms float64) {
	i.CritiqueDuration.Record(ctx, ms)
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
