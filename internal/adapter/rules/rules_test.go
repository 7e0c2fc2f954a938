package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	yaml := `
calculations:
  MEDIAN: column
  ANY_VALUE:
    requires_column: true
  ROWS: none
filters:
  matches: scalar
schema_exempt_filters: [exists]
max_limit: 500
`
	path := writeTempFile(t, yaml)

	r, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.True(t, r.CalculationOps["MEDIAN"].RequiresColumn)
	assert.True(t, r.CalculationOps["ANY_VALUE"].RequiresColumn)
	assert.False(t, r.CalculationOps["ROWS"].RequiresColumn)
	assert.Contains(t, r.CalculationOps, "COUNT", "default operators are kept")
	assert.Equal(t, domain.ArityScalar, r.FilterOps["matches"])
	assert.Equal(t, domain.ArityList, r.FilterOps["in"])
	assert.Contains(t, r.SchemaExemptFilterOps, "exists")
	assert.Equal(t, 500, r.MaxLimit)
	assert.Contains(t, r.OrderDirections, "ascending")
}

func TestParse_EmptyBase(t *testing.T) {
	r, err := Parse([]byte(`
base: empty
calculations:
  COUNT: none
filters:
  "=": scalar
having_ops: [">"]
filter_combinations: [AND]
order_directions: [descending]
max_limit: 10
`))
	require.NoError(t, err)

	assert.Len(t, r.CalculationOps, 1)
	assert.Len(t, r.FilterOps, 1)
	assert.NotContains(t, r.FilterOps, "exists")
	assert.Len(t, r.HavingOps, 1)
	assert.NotContains(t, r.FilterCombinations, "OR")
	assert.Equal(t, 10, r.MaxLimit)
}

func TestParse_ListsReplaceDefaults(t *testing.T) {
	r, err := Parse([]byte("order_directions: [descending]\n"))
	require.NoError(t, err)

	assert.Len(t, r.OrderDirections, 1)
	assert.Contains(t, r.OrderDirections, "descending")
}

func TestParse_EmptyDocument(t *testing.T) {
	r, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRules(), r)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "filterz:\n  '=': scalar\n", "parsing rules YAML"},
		{"bad shorthand", "calculations:\n  P95: maybe\n", "invalid calculation shorthand"},
		{"bad arity", "filters:\n  like: pattern\n", "unknown value arity"},
		{"bad base", "base: minimal\n", "base"},
		{"empty base without ops", "base: empty\nmax_limit: 5\n", "no calculation operators"},
		{"exempt op not a filter", "schema_exempt_filters: [matches]\n", "schema-exempt"},
		{"negative limit", "max_limit: -1\n", "max_limit"},
		{"not yaml", "calculations: [\n", "parsing rules YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_UnknownArityIsSentinel(t *testing.T) {
	_, err := Parse([]byte("filters:\n  like: pattern\n"))
	assert.ErrorIs(t, err, domain.ErrUnknownArity)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRules(), r)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading rules file")
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
