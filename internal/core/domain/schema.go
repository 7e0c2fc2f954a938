package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// ColumnSchema is the set of column names a query may reference for one
// sample. Membership is an exact, case-sensitive match.
type ColumnSchema struct {
	names map[string]struct{}
}

func NewColumnSchema(names []string) ColumnSchema {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return ColumnSchema{names: set}
}

// ParseColumns builds a ColumnSchema from the dataset's columns field.
// Accepts a JSON array of strings or a comma-separated list, where each
// entry may be wrapped in quotes and the whole list in brackets.
func ParseColumns(raw string) ColumnSchema {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "[") {
		var names []string
		if err := json.Unmarshal([]byte(trimmed), &names); err == nil {
			return NewColumnSchema(names)
		}
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
	}

	var names []string
	for _, part := range strings.Split(trimmed, ",") {
		name := strings.Trim(strings.TrimSpace(part), `"'`)
		if name != "" {
			names = append(names, name)
		}
	}
	return NewColumnSchema(names)
}

func (s ColumnSchema) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

func (s ColumnSchema) Len() int {
	return len(s.names)
}

// Names returns the column names in sorted order.
func (s ColumnSchema) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
