package domain

import "encoding/json"

// Query is the typed form of a generated query object. Optional scalars are
// pointers and optional sequences carry a Has flag, so an absent field is
// distinguishable from an empty or zero one.
type Query struct {
	Calculations    []Calculation
	HasCalculations bool

	Filters    []Filter
	HasFilters bool

	FilterCombination    string
	HasFilterCombination bool

	Breakdowns []string
	Orders     []Order
	Havings    []Having

	TimeRange   *float64
	StartTime   *float64
	EndTime     *float64
	Granularity *float64
	Limit       *float64
}

type Calculation struct {
	Op     string
	Column string
}

type Filter struct {
	Column   string
	Op       string
	Value    any
	HasValue bool // false when the key is missing or null
}

type Order struct {
	Op     string
	Column string
	Order  string
}

type Having struct {
	CalculateOp string
	Column      string
	Op          string
	Value       any
	HasValue    bool
}

// decodeQuery maps a shape-checked JSON object onto Query. Fields of the
// wrong type are left zero; the shape check reports them.
func decodeQuery(obj map[string]any) Query {
	var q Query

	if items, ok := obj["calculations"].([]any); ok {
		q.HasCalculations = true
		for _, it := range items {
			m, _ := it.(map[string]any)
			q.Calculations = append(q.Calculations, Calculation{
				Op:     str(m["op"]),
				Column: str(m["column"]),
			})
		}
	}

	if items, ok := obj["filters"].([]any); ok {
		q.HasFilters = true
		for _, it := range items {
			m, _ := it.(map[string]any)
			v, has := m["value"]
			q.Filters = append(q.Filters, Filter{
				Column:   str(m["column"]),
				Op:       str(m["op"]),
				Value:    v,
				HasValue: has && v != nil,
			})
		}
	}

	if v, ok := obj["filter_combination"].(string); ok {
		q.FilterCombination = v
		q.HasFilterCombination = true
	}

	if items, ok := obj["breakdowns"].([]any); ok {
		for _, it := range items {
			q.Breakdowns = append(q.Breakdowns, str(it))
		}
	}

	if items, ok := obj["orders"].([]any); ok {
		for _, it := range items {
			m, _ := it.(map[string]any)
			q.Orders = append(q.Orders, Order{
				Op:     str(m["op"]),
				Column: str(m["column"]),
				Order:  str(m["order"]),
			})
		}
	}

	if items, ok := obj["havings"].([]any); ok {
		for _, it := range items {
			m, _ := it.(map[string]any)
			v, has := m["value"]
			q.Havings = append(q.Havings, Having{
				CalculateOp: str(m["calculate_op"]),
				Column:      str(m["column"]),
				Op:          str(m["op"]),
				Value:       v,
				HasValue:    has && v != nil,
			})
		}
	}

	q.TimeRange = number(obj, "time_range")
	q.StartTime = number(obj, "start_time")
	q.EndTime = number(obj, "end_time")
	q.Granularity = number(obj, "granularity")
	q.Limit = number(obj, "limit")

	return q
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func number(obj map[string]any, key string) *float64 {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
