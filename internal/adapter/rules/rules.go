package rules

import (
	"fmt"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// File is the YAML form of an operator rules table. It is layered on top of
// the built-in Honeycomb grammar unless Base is "empty".
//
//	base: default
//	calculations:
//	  MEDIAN: column          # shorthand: "column" or "none"
//	  ANY_VALUE:
//	    requires_column: true
//	filters:
//	  matches: scalar
//	schema_exempt_filters: [exists, does-not-exist]
//	max_limit: 500
type File struct {
	Base                string                       `yaml:"base"`
	Calculations        map[string]CalculationSpec   `yaml:"calculations"`
	Filters             map[string]domain.ValueArity `yaml:"filters"`
	HavingOps           []string                     `yaml:"having_ops"`
	SchemaExemptFilters []string                     `yaml:"schema_exempt_filters"`
	FilterCombinations  []string                     `yaml:"filter_combinations"`
	OrderDirections     []string                     `yaml:"order_directions"`
	MaxLimit            int                          `yaml:"max_limit"`
}

const (
	BaseDefault = "default"
	BaseEmpty   = "empty"
)

// CalculationSpec describes one calculation operator in the rules file.
type CalculationSpec struct {
	RequiresColumn bool `yaml:"requires_column"`
}

// UnmarshalYAML accepts either the struct form or the scalar shorthand.
//
//	calculations:
//	  P95: column                       # shorthand
//	  COUNT:
//	    requires_column: false          # struct
func (c *CalculationSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		switch value.Value {
		case "column":
			c.RequiresColumn = true
		case "none", "":
			c.RequiresColumn = false
		default:
			return fmt.Errorf("line %d: invalid calculation shorthand %q (allowed: column, none)", value.Line, value.Value)
		}
		return nil
	}
	type alias CalculationSpec
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding calculation spec: %w", err)
	}
	*c = CalculationSpec(a)
	return nil
}

// Rules builds the domain rules table described by f.
func (f *File) Rules() (domain.Rules, error) {
	var r domain.Rules
	switch f.Base {
	case "", BaseDefault:
		r = domain.DefaultRules()
	case BaseEmpty:
		r = domain.Rules{
			CalculationOps:        map[string]domain.CalculationRule{},
			FilterOps:             map[string]domain.ValueArity{},
			HavingOps:             map[string]struct{}{},
			SchemaExemptFilterOps: map[string]struct{}{},
			FilterCombinations:    map[string]struct{}{},
			OrderDirections:       map[string]struct{}{},
		}
	default:
		return domain.Rules{}, fmt.Errorf("base: invalid value %q (allowed: default, empty)", f.Base)
	}

	for op, spec := range f.Calculations {
		r.CalculationOps[op] = domain.CalculationRule{RequiresColumn: spec.RequiresColumn}
	}
	for op, arity := range f.Filters {
		r.FilterOps[op] = arity
	}

	// Lists replace the base set when given.
	if f.HavingOps != nil {
		r.HavingOps = toSet(f.HavingOps)
	}
	if f.SchemaExemptFilters != nil {
		r.SchemaExemptFilterOps = toSet(f.SchemaExemptFilters)
	}
	if f.FilterCombinations != nil {
		r.FilterCombinations = toSet(f.FilterCombinations)
	}
	if f.OrderDirections != nil {
		r.OrderDirections = toSet(f.OrderDirections)
	}
	if f.MaxLimit != 0 {
		r.MaxLimit = f.MaxLimit
	}

	if err := r.Validate(); err != nil {
		return domain.Rules{}, err
	}
	return r, nil
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
