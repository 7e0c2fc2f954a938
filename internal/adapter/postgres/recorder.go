package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultWriteTimeout = 5 * time.Second

// ScoreStore persists score entries of one run into the nlqeval_scores table.
// It implements port.ScoreRecorder.
type ScoreStore struct {
	pool         *pgxpool.Pool
	runID        uuid.UUID
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewScoreStore(pool *pgxpool.Pool, runID uuid.UUID, logger *slog.Logger) *ScoreStore {
	return &ScoreStore{
		pool:         pool,
		runID:        runID,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *ScoreStore) RunID() uuid.UUID {
	return s.runID
}

// EnsureSchema creates the scores table and its index when missing.
func (s *ScoreStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, queryCreateScores); err != nil {
		return fmt.Errorf("creating scores table: %w", err)
	}
	return nil
}

// Record inserts one entry. Failures are logged, not returned: a scoring run
// continues when the store is unavailable.
func (s *ScoreStore) Record(ctx context.Context, entry port.ScoreEntry) {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	var errText *string
	if entry.Err != nil {
		msg := entry.Err.Error()
		errText = &msg
	}

	_, err := s.pool.Exec(ctx, queryInsertScore,
		s.runID.String(),
		entry.Score.SampleID,
		entry.Score.Scorer,
		string(entry.Score.Value),
		entry.Score.Answer,
		entry.Score.Explanation,
		entry.DurationMS,
		errText,
	)
	if err != nil {
		s.logger.WarnContext(ctx, "storing score failed",
			slog.String("sample.id", entry.Score.SampleID),
			slog.String("error.type", "db_error"),
			slog.String("error", err.Error()),
		)
	}
}

type scoreRow struct {
	SampleID    string `db:"sample_id"`
	Scorer      string `db:"scorer"`
	Value       string `db:"value"`
	Answer      string `db:"answer"`
	Explanation string `db:"explanation"`
}

// Scores returns the successful scores stored for runID in insertion order.
func (s *ScoreStore) Scores(ctx context.Context, runID uuid.UUID) ([]domain.Score, error) {
	rows, err := s.pool.Query(ctx, queryRunScores, runID.String())
	if err != nil {
		return nil, fmt.Errorf("querying scores: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[scoreRow])
	if err != nil {
		return nil, fmt.Errorf("reading scores: %w", err)
	}

	scores := make([]domain.Score, 0, len(collected))
	for _, r := range collected {
		scores = append(scores, domain.Score{
			SampleID:    r.SampleID,
			Scorer:      r.Scorer,
			Value:       domain.ScoreValue(r.Value),
			Answer:      r.Answer,
			Explanation: r.Explanation,
		})
	}
	return scores, nil
}

// Close releases the pool.
func (s *ScoreStore) Close() error {
	s.pool.Close()
	return nil
}
