package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// Header names of the query-log export.
const (
	ExportInput  = "app.nlq.user_input"
	ExportPrompt = "JOIN::::app.nlq.full_prompt"
)

var columnsPattern = regexp.MustCompile(`COLUMNS:([^"\n]+)`)

// ExtractColumns pulls the column list out of a logged full prompt. The
// match is returned verbatim; an absent list yields "".
func ExtractColumns(fullPrompt string) string {
	m := columnsPattern.FindStringSubmatch(fullPrompt)
	if m == nil {
		return ""
	}
	return m[1]
}

// Import converts a query-log export into the sample CSV, one row per
// exported row. It returns the number of samples written.
func Import(in io.Reader, out io.Writer) (int, error) {
	cr := newReader(in)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: empty export", ErrMissingColumn)
		}
		return 0, fmt.Errorf("reading export header: %w", err)
	}
	idx, err := indexColumns(header, ExportInput, ExportPrompt)
	if err != nil {
		return 0, err
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{ColumnInput, ColumnColumns}); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	n := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading export row %d: %w", n+1, err)
		}
		row := []string{field(rec, idx[0]), ExtractColumns(field(rec, idx[1]))}
		if err := w.Write(row); err != nil {
			return n, fmt.Errorf("writing row %d: %w", n+1, err)
		}
		n++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return n, fmt.Errorf("flushing output: %w", err)
	}
	return n, nil
}
