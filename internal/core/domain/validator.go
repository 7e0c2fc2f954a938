package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Verdict is the binary outcome of validating one query object.
// Reasons is empty exactly when Valid is true.
type Verdict struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

func (v Verdict) String() string {
	if v.Valid {
		return "VALID"
	}
	return "INVALID"
}

// QueryValidator checks generated query objects against a column schema.
// It never returns an error: malformed input of any kind is INVALID.
// A QueryValidator is safe for concurrent use.
type QueryValidator struct {
	rules Rules
}

func NewQueryValidator(rules Rules) *QueryValidator {
	return &QueryValidator{rules: rules}
}

// Check parses raw as JSON and validates the result. raw is expected to be
// normalized already (see NormalizeCompletion).
func (v *QueryValidator) Check(raw string, schema ColumnSchema) Verdict {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return invalid("parse failure: empty completion")
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return invalid(fmt.Sprintf("parse failure: %v", err))
	}
	return v.check(doc, schema)
}

// CheckValue validates an already-decoded value. Values that are not
// JSON-encodable are INVALID.
func (v *QueryValidator) CheckValue(value any, schema ColumnSchema) Verdict {
	raw, err := json.Marshal(value)
	if err != nil {
		return invalid(fmt.Sprintf("parse failure: %v", err))
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return invalid(fmt.Sprintf("parse failure: %v", err))
	}
	return v.check(doc, schema)
}

func (v *QueryValidator) check(doc any, schema ColumnSchema) Verdict {
	if reasons := checkShape(doc); len(reasons) > 0 {
		return Verdict{Valid: false, Reasons: reasons}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return invalid("shape failure: query is not an object")
	}

	q := decodeQuery(obj)
	var reasons []string
	reasons = append(reasons, v.checkCalculations(q, schema)...)
	reasons = append(reasons, v.checkFilters(q, schema)...)
	reasons = append(reasons, v.checkBreakdowns(q, schema)...)
	reasons = append(reasons, v.checkOrders(q)...)
	reasons = append(reasons, v.checkHavings(q)...)
	reasons = append(reasons, v.checkRanges(q)...)

	if len(reasons) > 0 {
		return Verdict{Valid: false, Reasons: reasons}
	}
	return Verdict{Valid: true}
}

func (v *QueryValidator) checkCalculations(q Query, schema ColumnSchema) []string {
	var reasons []string
	for i, c := range q.Calculations {
		rule, ok := v.rules.CalculationOps[c.Op]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("calculations[%d]: unknown operator %q", i, c.Op))
			continue
		}
		if c.Column == "" {
			if rule.RequiresColumn {
				reasons = append(reasons, fmt.Sprintf("calculations[%d]: operator %s requires a column", i, c.Op))
			}
			continue
		}
		if !schema.Has(c.Column) {
			reasons = append(reasons, fmt.Sprintf("calculations[%d]: unknown column %q", i, c.Column))
		}
	}
	return reasons
}

func (v *QueryValidator) checkFilters(q Query, schema ColumnSchema) []string {
	var reasons []string
	for i, f := range q.Filters {
		arity, ok := v.rules.FilterOps[f.Op]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("filters[%d]: unknown operator %q", i, f.Op))
		}

		_, exempt := v.rules.SchemaExemptFilterOps[f.Op]
		switch {
		case f.Column == "":
			reasons = append(reasons, fmt.Sprintf("filters[%d]: missing column", i))
		case !exempt && !schema.Has(f.Column):
			reasons = append(reasons, fmt.Sprintf("filters[%d]: unknown column %q", i, f.Column))
		}

		if !ok {
			continue
		}
		if msg := checkArity(arity, f.Op, f.Value, f.HasValue); msg != "" {
			reasons = append(reasons, fmt.Sprintf("filters[%d]: %s", i, msg))
		}
	}

	if q.HasFilterCombination {
		if _, ok := v.rules.FilterCombinations[q.FilterCombination]; !ok {
			reasons = append(reasons, fmt.Sprintf("filter_combination: unknown value %q", q.FilterCombination))
		}
	}
	return reasons
}

func checkArity(arity ValueArity, op string, value any, hasValue bool) string {
	switch arity {
	case ArityNone:
		if hasValue {
			return fmt.Sprintf("operator %s takes no value", op)
		}
	case ArityScalar:
		if !hasValue {
			return fmt.Sprintf("operator %s requires a value", op)
		}
		if !isScalar(value) {
			return fmt.Sprintf("operator %s requires a single value", op)
		}
	case ArityList:
		if !hasValue {
			return fmt.Sprintf("operator %s requires a value", op)
		}
		items, ok := value.([]any)
		if !ok {
			return fmt.Sprintf("operator %s requires a list value", op)
		}
		for _, it := range items {
			if !isScalar(it) {
				return fmt.Sprintf("operator %s requires a list of single values", op)
			}
		}
	}
	return ""
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool:
		return true
	}
	return false
}

func (v *QueryValidator) checkBreakdowns(q Query, schema ColumnSchema) []string {
	var reasons []string
	for i, b := range q.Breakdowns {
		if !schema.Has(b) {
			reasons = append(reasons, fmt.Sprintf("breakdowns[%d]: unknown column %q", i, b))
		}
	}
	return reasons
}

// checkOrders requires each order to name a calculation from the query or
// a breakdown column.
func (v *QueryValidator) checkOrders(q Query) []string {
	calcs := make(map[Calculation]struct{}, len(q.Calculations))
	for _, c := range q.Calculations {
		calcs[c] = struct{}{}
	}
	breakdowns := make(map[string]struct{}, len(q.Breakdowns))
	for _, b := range q.Breakdowns {
		breakdowns[b] = struct{}{}
	}

	var reasons []string
	for i, o := range q.Orders {
		switch {
		case o.Op != "":
			if _, ok := calcs[Calculation{Op: o.Op, Column: o.Column}]; !ok {
				reasons = append(reasons, fmt.Sprintf("orders[%d]: %s does not match a calculation", i, describeCalc(o.Op, o.Column)))
			}
		case o.Column != "":
			if _, ok := breakdowns[o.Column]; !ok {
				reasons = append(reasons, fmt.Sprintf("orders[%d]: column %q is not a breakdown", i, o.Column))
			}
		default:
			reasons = append(reasons, fmt.Sprintf("orders[%d]: needs an op or a column", i))
		}
		if o.Order != "" {
			if _, ok := v.rules.OrderDirections[o.Order]; !ok {
				reasons = append(reasons, fmt.Sprintf("orders[%d]: unknown direction %q", i, o.Order))
			}
		}
	}
	return reasons
}

func (v *QueryValidator) checkHavings(q Query) []string {
	calcs := make(map[Calculation]struct{}, len(q.Calculations))
	for _, c := range q.Calculations {
		calcs[c] = struct{}{}
	}

	var reasons []string
	for i, h := range q.Havings {
		if _, ok := calcs[Calculation{Op: h.CalculateOp, Column: h.Column}]; !ok {
			reasons = append(reasons, fmt.Sprintf("havings[%d]: %s does not match a calculation", i, describeCalc(h.CalculateOp, h.Column)))
		}
		if _, ok := v.rules.HavingOps[h.Op]; !ok {
			reasons = append(reasons, fmt.Sprintf("havings[%d]: unknown operator %q", i, h.Op))
		}
		if _, ok := toFloat(h.Value); !h.HasValue || !ok {
			reasons = append(reasons, fmt.Sprintf("havings[%d]: value must be a number", i))
		}
	}
	return reasons
}

func (v *QueryValidator) checkRanges(q Query) []string {
	var reasons []string
	nonNegative := func(name string, f *float64) {
		if f != nil && *f < 0 {
			reasons = append(reasons, fmt.Sprintf("%s: must be non-negative, got %v", name, *f))
		}
	}
	nonNegative("time_range", q.TimeRange)
	nonNegative("start_time", q.StartTime)
	nonNegative("end_time", q.EndTime)
	nonNegative("granularity", q.Granularity)

	if q.StartTime != nil && q.EndTime != nil && *q.EndTime <= *q.StartTime {
		reasons = append(reasons, "end_time: must be after start_time")
	}
	if q.Granularity != nil && q.TimeRange != nil && *q.Granularity > *q.TimeRange {
		reasons = append(reasons, "granularity: must not exceed time_range")
	}
	if q.Limit != nil {
		l := *q.Limit
		if l != math.Trunc(l) || l < 1 || l > float64(v.rules.MaxLimit) {
			reasons = append(reasons, fmt.Sprintf("limit: must be an integer between 1 and %d, got %v", v.rules.MaxLimit, l))
		}
	}
	return reasons
}

func describeCalc(op, column string) string {
	if column == "" {
		return op
	}
	return fmt.Sprintf("%s(%s)", op, column)
}

func invalid(reason string) Verdict {
	return Verdict{Valid: false, Reasons: []string{reason}}
}
