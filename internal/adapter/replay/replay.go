// Package replay serves model completions recorded ahead of time. Model
// invocation happens outside nlqeval; these files are how its results come in.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNoCompletion = errors.New("no recorded completion")
	ErrDuplicate    = errors.New("duplicate key")
)

const digestPrefix = "sha256:"

// Digest identifies a prompt by content: "sha256:" followed by the hex digest.
func Digest(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return digestPrefix + hex.EncodeToString(sum[:])
}

// Record is one line of a replay file.
type Record struct {
	PromptDigest string `json:"prompt_digest"`
	Completion   string `json:"completion"`
}

// Model is a port.Model that answers prompts from recorded completions.
type Model struct {
	byDigest map[string]string
}

// NewModel builds a Model from records. A digest may appear only once.
func NewModel(records []Record) (*Model, error) {
	m := &Model{byDigest: make(map[string]string, len(records))}
	for i, r := range records {
		if r.PromptDigest == "" {
			return nil, fmt.Errorf("record %d: missing prompt_digest", i+1)
		}
		if _, ok := m.byDigest[r.PromptDigest]; ok {
			return nil, fmt.Errorf("record %d: %w %s", i+1, ErrDuplicate, r.PromptDigest)
		}
		m.byDigest[r.PromptDigest] = r.Completion
	}
	return m, nil
}

// LoadModel reads an NDJSON replay file.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()

	var records []Record
	if err := decodeLines(f, func(dec *json.Decoder) error {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading replay file %s: %w", path, err)
	}
	return NewModel(records)
}

func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	digest := Digest(prompt)
	completion, ok := m.byDigest[digest]
	if !ok {
		return "", fmt.Errorf("%w for prompt %s", ErrNoCompletion, digest)
	}
	return completion, nil
}

func (m *Model) Len() int {
	return len(m.byDigest)
}

// decodeLines feeds each JSON value in r to fn until EOF.
func decodeLines(r io.Reader, fn func(*json.Decoder) error) error {
	dec := json.NewDecoder(r)
	for n := 1; dec.More(); n++ {
		if err := fn(dec); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
	return nil
}
