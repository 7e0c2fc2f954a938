// Package prompts holds the default prompt templates shipped with the binary.
package prompts

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
)

// SystemMessage precedes every generation prompt.
const SystemMessage = "Honeycomb AI suggests queries based on user input."

//go:embed prompt.txt
var defaultPrompt string

//go:embed critique.txt
var defaultCritique string

// Prompt returns the generation template, read from path when set.
func Prompt(path string) (domain.Template, error) {
	return load(path, defaultPrompt)
}

// Critique returns the critic template, read from path when set.
func Critique(path string) (domain.Template, error) {
	return load(path, defaultCritique)
}

func load(path, fallback string) (domain.Template, error) {
	text := fallback
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Template{}, fmt.Errorf("reading template: %w", err)
		}
		text = string(data)
	}
	t, err := domain.NewTemplate(text)
	if err != nil {
		return domain.Template{}, fmt.Errorf("template %q: %w", path, err)
	}
	return t, nil
}
