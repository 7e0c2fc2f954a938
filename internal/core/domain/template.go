package domain

import (
	"errors"
	"strings"
)

var ErrEmptyTemplate = errors.New("empty prompt template")

// Placeholder tokens substituted by Template.Render, in substitution order.
const (
	TokenPrompt  = "{{prompt}}"
	TokenColumns = "{{columns}}"
	TokenQuery   = "{{query}}"
)

var tokenOrder = []string{TokenPrompt, TokenColumns, TokenQuery}

// Template is prompt text with literal {{token}} placeholders. Rendering is
// plain substring replacement so output is byte-for-byte predictable.
type Template struct {
	text string
}

func NewTemplate(text string) (Template, error) {
	if strings.TrimSpace(text) == "" {
		return Template{}, ErrEmptyTemplate
	}
	return Template{text: text}, nil
}

// Render replaces {{prompt}}, then {{columns}}, then {{query}} with the
// matching entry of vars (keyed by token). Tokens without an entry and
// unknown tokens are left as they are.
func (t Template) Render(vars map[string]string) string {
	out := t.text
	for _, tok := range tokenOrder {
		if v, ok := vars[tok]; ok {
			out = strings.ReplaceAll(out, tok, v)
		}
	}
	return out
}

func (t Template) Text() string {
	return t.text
}
