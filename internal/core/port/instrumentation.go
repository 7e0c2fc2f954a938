package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	IncrementScoreCount(ctx context.Context, scorer string)
	IncrementScoreInvalid(ctx context.Context, scorer string)
	RecordCritiqueDuration(ctx context.Context, ms float64)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) IncrementScoreCount(context.Context, string)     {}
func (NoopInstrumentation) IncrementScoreInvalid(context.Context, string)   {}
func (NoopInstrumentation) RecordCritiqueDuration(context.Context, float64) {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)     {}
