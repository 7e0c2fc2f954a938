package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML rules file and returns a validated rules table.
func LoadFromFile(path string) (domain.Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Rules{}, fmt.Errorf("reading rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rules. Unknown keys are rejected so a typo cannot
// silently fall back to the default grammar.
func Parse(data []byte) (domain.Rules, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return domain.Rules{}, fmt.Errorf("parsing rules YAML: %w", err)
	}

	r, err := f.Rules()
	if err != nil {
		return domain.Rules{}, fmt.Errorf("validating rules: %w", err)
	}
	return r, nil
}

// Load returns the rules at path, or the built-in grammar when path is empty.
func Load(path string) (domain.Rules, error) {
	if path == "" {
		return domain.DefaultRules(), nil
	}
	return LoadFromFile(path)
}
