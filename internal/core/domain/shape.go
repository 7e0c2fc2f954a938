package domain

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// queryShapeSchema pins the structure of a query object. Semantic rules
// (operators, columns, ranges) are checked separately against Rules.
const queryShapeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "calculations": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["op"],
        "properties": {
          "op": {"type": "string"},
          "column": {"type": "string"}
        }
      }
    },
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["op"],
        "properties": {
          "column": {"type": "string"},
          "op": {"type": "string"},
          "value": {}
        }
      }
    },
    "filter_combination": {"type": "string"},
    "breakdowns": {
      "type": "array",
      "items": {"type": "string"}
    },
    "orders": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "op": {"type": "string"},
          "column": {"type": "string"},
          "order": {"type": "string"}
        }
      }
    },
    "havings": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["calculate_op", "op", "value"],
        "properties": {
          "calculate_op": {"type": "string"},
          "column": {"type": "string"},
          "op": {"type": "string"},
          "value": {}
        }
      }
    },
    "time_range": {"type": "number"},
    "start_time": {"type": "number"},
    "end_time": {"type": "number"},
    "granularity": {"type": "number"},
    "limit": {"type": "number"}
  }
}`

var compiledShape = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(queryShapeSchema))
})

// checkShape returns one message per structural violation of doc.
func checkShape(doc any) []string {
	schema, err := compiledShape()
	if err != nil {
		return []string{fmt.Sprintf("shape schema unavailable: %v", err)}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []string{fmt.Sprintf("shape failure: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, "shape failure: "+e.String())
	}
	return errs
}
