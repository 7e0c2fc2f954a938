package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownArity = errors.New("unknown value arity")
	ErrInvalidRules = errors.New("invalid rules")
)

// ValueArity describes what a filter operator expects in its value field.
type ValueArity string

const (
	ArityNone   ValueArity = "none"   // value must be absent
	ArityScalar ValueArity = "scalar" // a single string, number or bool
	ArityList   ValueArity = "list"   // an array of scalars
)

// Valid reports whether a is one of the recognised arities.
func (a ValueArity) Valid() bool {
	switch a {
	case ArityNone, ArityScalar, ArityList:
		return true
	}
	return false
}

// CalculationRule describes one calculation operator.
type CalculationRule struct {
	RequiresColumn bool
}

// Rules is the operator grammar the validator enforces. It is plain data so
// it can be supplied from a file instead of being compiled in.
type Rules struct {
	CalculationOps map[string]CalculationRule
	FilterOps      map[string]ValueArity
	HavingOps      map[string]struct{}

	// Filter operators whose column need not appear in the schema.
	SchemaExemptFilterOps map[string]struct{}

	FilterCombinations map[string]struct{}
	OrderDirections    map[string]struct{}

	MaxLimit int
}

var columnlessCalculations = []string{"COUNT", "CONCURRENCY"}

var columnCalculations = []string{
	"SUM", "AVG", "COUNT_DISTINCT", "HEATMAP", "MAX", "MIN",
	"P001", "P01", "P05", "P10", "P25", "P50", "P75", "P90", "P95", "P99", "P999",
	"RATE_AVG", "RATE_SUM", "RATE_MAX",
}

var comparisonOps = []string{"=", "!=", ">", ">=", "<", "<="}

// DefaultRules returns the Honeycomb query grammar.
func DefaultRules() Rules {
	r := Rules{
		CalculationOps:        make(map[string]CalculationRule),
		FilterOps:             make(map[string]ValueArity),
		HavingOps:             set(comparisonOps...),
		SchemaExemptFilterOps: map[string]struct{}{},
		FilterCombinations:    set("AND", "OR"),
		OrderDirections:       set("ascending", "descending"),
		MaxLimit:              1000,
	}
	for _, op := range columnlessCalculations {
		r.CalculationOps[op] = CalculationRule{RequiresColumn: false}
	}
	for _, op := range columnCalculations {
		r.CalculationOps[op] = CalculationRule{RequiresColumn: true}
	}

	for _, op := range comparisonOps {
		r.FilterOps[op] = ArityScalar
	}
	for _, op := range []string{
		"starts-with", "does-not-start-with", "ends-with", "does-not-end-with",
		"contains", "does-not-contain",
	} {
		r.FilterOps[op] = ArityScalar
	}
	r.FilterOps["exists"] = ArityNone
	r.FilterOps["does-not-exist"] = ArityNone
	r.FilterOps["in"] = ArityList
	r.FilterOps["not-in"] = ArityList

	return r
}

// Validate checks the table is usable by the validator.
func (r Rules) Validate() error {
	if len(r.CalculationOps) == 0 {
		return fmt.Errorf("%w: no calculation operators", ErrInvalidRules)
	}
	if len(r.FilterOps) == 0 {
		return fmt.Errorf("%w: no filter operators", ErrInvalidRules)
	}
	for op := range r.CalculationOps {
		if op == "" {
			return fmt.Errorf("%w: empty calculation operator", ErrInvalidRules)
		}
	}
	for op, arity := range r.FilterOps {
		if op == "" {
			return fmt.Errorf("%w: empty filter operator", ErrInvalidRules)
		}
		if !arity.Valid() {
			return fmt.Errorf("filter operator %q: %w %q (allowed: none, scalar, list)", op, ErrUnknownArity, arity)
		}
	}
	for op := range r.SchemaExemptFilterOps {
		if _, ok := r.FilterOps[op]; !ok {
			return fmt.Errorf("%w: schema-exempt operator %q is not a filter operator", ErrInvalidRules, op)
		}
	}
	if r.MaxLimit <= 0 {
		return fmt.Errorf("%w: max_limit must be positive, got %d", ErrInvalidRules, r.MaxLimit)
	}
	return nil
}

func set(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
