package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/guillermoBallester/nlqeval/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of a score record.
type fileEntry struct {
	Timestamp   string  `json:"ts"`
	SampleID    string  `json:"sample_id"`
	Scorer      string  `json:"scorer"`
	Value       string  `json:"value,omitempty"`
	Answer      string  `json:"answer,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
	DurationMS  int64   `json:"duration_ms"`
	Error       *string `json:"error"`
}

// FileAuditor writes score entries as NDJSON (one JSON object per line) to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.ScoreEntry) {
	fe := fileEntry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		SampleID:    entry.Score.SampleID,
		Scorer:      entry.Score.Scorer,
		Value:       string(entry.Score.Value),
		Answer:      entry.Score.Answer,
		Explanation: entry.Score.Explanation,
		DurationMS:  entry.DurationMS,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; a scoring run does not fail on audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// NoopAuditor discards all score entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, port.ScoreEntry) {}
func (NoopAuditor) Close() error                            { return nil }

// Multi fans each entry out to every recorder.
type Multi []port.ScoreRecorder

func (m Multi) Record(ctx context.Context, entry port.ScoreEntry) {
	for _, r := range m {
		r.Record(ctx, entry)
	}
}

// Close closes every recorder and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
