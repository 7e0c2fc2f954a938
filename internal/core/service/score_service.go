package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNoCritic is returned by Critique when the service has no critic model.
var ErrNoCritic = errors.New("no critic model configured")

// NoCompletion explains a score for a sample the model never answered.
const NoCompletion = "no completion"

// Templates holds the generation prompt and the critic prompt.
type Templates struct {
	Prompt   domain.Template
	Critique domain.Template
}

// ScoreService orchestrates completion scoring (domain) and recording (infrastructure).
type ScoreService struct {
	validator   port.QueryValidator
	adjudicator port.CritiqueAdjudicator
	critic      port.Model // nil when only the validate scorer is used
	templates   Templates
	recorder    port.ScoreRecorder
	logger      *slog.Logger
	tracer      trace.Tracer
	inst        port.Instrumentation
}

func NewScoreService(validator port.QueryValidator, adjudicator port.CritiqueAdjudicator, critic port.Model, templates Templates, recorder port.ScoreRecorder, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *ScoreService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &ScoreService{
		validator:   validator,
		adjudicator: adjudicator,
		critic:      critic,
		templates:   templates,
		recorder:    recorder,
		logger:      logger,
		tracer:      tracer,
		inst:        inst,
	}
}

// RenderPrompt builds the generation prompt for a sample.
func (s *ScoreService) RenderPrompt(sample domain.Sample) string {
	return s.templates.Prompt.Render(map[string]string{
		domain.TokenPrompt:  sample.Input,
		domain.TokenColumns: sample.Columns,
	})
}

// RenderCritique builds the critic prompt. The critic sees the full
// generation prompt, not just the user's request.
func (s *ScoreService) RenderCritique(sample domain.Sample, completion string) string {
	return s.templates.Critique.Render(map[string]string{
		domain.TokenPrompt:  s.RenderPrompt(sample),
		domain.TokenColumns: sample.Columns,
		domain.TokenQuery:   strings.TrimSpace(completion),
	})
}

// Inspect normalizes a completion and validates it against schema without
// recording anything.
func (s *ScoreService) Inspect(completion string, schema domain.ColumnSchema) (string, domain.Verdict) {
	query := domain.NormalizeCompletion(completion)
	return query, s.validator.Check(query, schema)
}

// Adjudicate interprets a critic reply without recording anything.
func (s *ScoreService) Adjudicate(reply string) domain.Critique {
	return s.adjudicator.Adjudicate(reply)
}

// Validate scores a completion with the query validator. It cannot fail:
// any malformed completion is INCORRECT.
func (s *ScoreService) Validate(ctx context.Context, sample domain.Sample, completion string) domain.Score {
	ctx, span := s.tracer.Start(ctx, "ScoreService.Validate",
		trace.WithAttributes(
			attribute.String("sample.id", sample.ID),
			attribute.String("scorer", domain.ScorerValidate),
		),
	)
	defer span.End()

	start := time.Now()
	query, verdict := s.Inspect(completion, sample.Schema())

	score := domain.Score{
		SampleID:    sample.ID,
		Scorer:      domain.ScorerValidate,
		Value:       domain.Incorrect,
		Answer:      query,
		Explanation: strings.Join(verdict.Reasons, "; "),
	}
	if verdict.Valid {
		score.Value = domain.Correct
	}

	span.SetAttributes(attribute.String("verdict", verdict.String()))
	s.finish(ctx, score, time.Since(start))
	return score
}

// Critique scores a completion by asking the critic model to judge it.
// Only a failure to obtain the critic's reply is returned as an error; an
// unusable reply is an INCORRECT score.
func (s *ScoreService) Critique(ctx context.Context, sample domain.Sample, completion string) (domain.Score, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreService.Critique",
		trace.WithAttributes(
			attribute.String("sample.id", sample.ID),
			attribute.String("scorer", domain.ScorerCritique),
		),
	)
	defer span.End()

	if s.critic == nil {
		span.RecordError(ErrNoCritic)
		span.SetStatus(codes.Error, ErrNoCritic.Error())
		return domain.Score{}, ErrNoCritic
	}

	start := time.Now()
	reply, err := s.critic.Complete(ctx, s.RenderCritique(sample, completion))
	elapsed := time.Since(start)
	s.inst.RecordCritiqueDuration(ctx, float64(elapsed.Milliseconds()))

	if err != nil {
		s.logger.WarnContext(ctx, "critic model failed",
			slog.String("sample.id", sample.ID),
			slog.String("error.type", "model_error"),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recorder.Record(ctx, port.ScoreEntry{
			Score:      domain.Score{SampleID: sample.ID, Scorer: domain.ScorerCritique},
			DurationMS: elapsed.Milliseconds(),
			Err:        err,
		})
		return domain.Score{}, fmt.Errorf("critique sample %s: %w", sample.ID, err)
	}

	critique := s.adjudicator.Adjudicate(reply)
	score := domain.Score{
		SampleID:    sample.ID,
		Scorer:      domain.ScorerCritique,
		Value:       domain.Incorrect,
		Answer:      strings.TrimSpace(completion),
		Explanation: critique.Explanation,
	}
	if critique.Outcome == domain.OutcomeGood {
		score.Value = domain.Correct
	}

	span.SetAttributes(attribute.String("critique.outcome", string(critique.Outcome)))
	s.finish(ctx, score, elapsed)
	return score, nil
}

// Unanswered scores a sample that has no completion. The score is always
// INCORRECT and is recorded like any other.
func (s *ScoreService) Unanswered(ctx context.Context, sample domain.Sample, scorer string) domain.Score {
	score := domain.Score{
		SampleID:    sample.ID,
		Scorer:      scorer,
		Value:       domain.Incorrect,
		Explanation: NoCompletion,
	}
	s.finish(ctx, score, 0)
	return score
}

func (s *ScoreService) finish(ctx context.Context, score domain.Score, elapsed time.Duration) {
	s.inst.IncrementScoreCount(ctx, score.Scorer)
	if !score.Correct() {
		s.inst.IncrementScoreInvalid(ctx, score.Scorer)
		s.logger.WarnContext(ctx, "sample scored incorrect",
			slog.String("sample.id", score.SampleID),
			slog.String("scorer", score.Scorer),
			slog.String("explanation", score.Explanation),
		)
	} else {
		s.logger.DebugContext(ctx, "sample scored correct",
			slog.String("sample.id", score.SampleID),
			slog.String("scorer", score.Scorer),
		)
	}

	s.recorder.Record(ctx, port.ScoreEntry{
		Score:      score,
		DurationMS: elapsed.Milliseconds(),
	})
}
