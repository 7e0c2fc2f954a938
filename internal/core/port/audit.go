package port

import (
	"context"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
)

// ScoreEntry represents a single scored sample.
type ScoreEntry struct {
	Score      domain.Score
	DurationMS int64
	Err        error
}

// ScoreRecorder records score events.
type ScoreRecorder interface {
	Record(ctx context.Context, entry ScoreEntry)
	Close() error
}
