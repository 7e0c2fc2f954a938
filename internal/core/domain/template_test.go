package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTemplate_Empty(t *testing.T) {
	_, err := NewTemplate("  \n ")
	assert.ErrorIs(t, err, ErrEmptyTemplate)
}

func TestTemplate_Render(t *testing.T) {
	tmpl, err := NewTemplate("COLUMNS: {{columns}}\nQUESTION: {{prompt}}\nQUERY: {{query}}\n{{prompt}}")
	require.NoError(t, err)

	out := tmpl.Render(map[string]string{
		TokenPrompt:  "slow requests",
		TokenColumns: "name, duration_ms",
		TokenQuery:   `{"limit":1}`,
	})
	assert.Equal(t, "COLUMNS: name, duration_ms\nQUESTION: slow requests\nQUERY: {\"limit\":1}\nslow requests", out)
}

func TestTemplate_RenderLeavesMissingTokens(t *testing.T) {
	tmpl, err := NewTemplate("{{prompt}} {{query}} {{other}}")
	require.NoError(t, err)

	out := tmpl.Render(map[string]string{TokenPrompt: "p"})
	assert.Equal(t, "p {{query}} {{other}}", out)
}

func TestTemplate_RenderInTokenOrder(t *testing.T) {
	tmpl, err := NewTemplate("Q: {{prompt}}")
	require.NoError(t, err)

	// {{prompt}} is substituted first, so a later token inside its value is expanded too.
	out := tmpl.Render(map[string]string{
		TokenPrompt:  "{{columns}} $1",
		TokenColumns: "name",
	})
	assert.Equal(t, "Q: name $1", out)
	assert.Equal(t, "Q: {{prompt}}", tmpl.Text())
}
