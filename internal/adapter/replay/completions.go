package replay

import (
	"encoding/json"
	"fmt"
	"os"
)

// Completion is one generated answer for a dataset sample.
type Completion struct {
	SampleID   string `json:"sample_id"`
	Completion string `json:"completion"`
}

// LoadCompletions reads an NDJSON file of Completion records into a map
// keyed by sample id.
func LoadCompletions(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening completions file: %w", err)
	}
	defer f.Close()

	out := make(map[string]string)
	err = decodeLines(f, func(dec *json.Decoder) error {
		var c Completion
		if err := dec.Decode(&c); err != nil {
			return err
		}
		if c.SampleID == "" {
			return fmt.Errorf("missing sample_id")
		}
		if _, ok := out[c.SampleID]; ok {
			return fmt.Errorf("%w %s", ErrDuplicate, c.SampleID)
		}
		out[c.SampleID] = c.Completion
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading completions file %s: %w", path, err)
	}
	return out, nil
}
