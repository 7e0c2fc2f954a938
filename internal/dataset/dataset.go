// Package dataset reads evaluation samples from CSV and builds the sample
// CSV from a full query-log export.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/guillermoBallester/nlqeval/internal/core/domain"
)

// Header names of the sample CSV.
const (
	ColumnInput   = "user_input"
	ColumnColumns = "columns"
)

var ErrMissingColumn = errors.New("missing required column")

// sampleNamespace scopes the name-based sample IDs.
var sampleNamespace = uuid.MustParse("6f1c2a7e-4b8d-5e39-9a0c-3d2f1b7e8c41")

// SampleID derives a stable id from a row's position and request text, so
// re-reading an unchanged dataset yields the same ids.
func SampleID(index int, input string) string {
	name := strconv.Itoa(index) + "\x00" + input
	return uuid.NewSHA1(sampleNamespace, []byte(name)).String()
}

// Load reads the sample CSV at path. Rows keep file order.
func Load(path string) ([]domain.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	return samples, nil
}

// Read parses a sample CSV with a header containing user_input and columns.
// Other columns are ignored.
func Read(r io.Reader) ([]domain.Sample, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx, err := indexColumns(header, ColumnInput, ColumnColumns)
	if err != nil {
		return nil, err
	}

	var samples []domain.Sample
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row+1, err)
		}
		input := field(rec, idx[0])
		samples = append(samples, domain.Sample{
			ID:      SampleID(row, input),
			Input:   input,
			Columns: field(rec, idx[1]),
		})
	}
	return samples, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return cr
}

// indexColumns returns the position of each name in header.
func indexColumns(header []string, names ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		pos[strings.TrimSpace(h)] = i
	}

	out := make([]int, len(names))
	var missing []string
	for i, n := range names {
		p, ok := pos[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return out, nil
}

// field returns rec[i], or "" for a short row.
func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
