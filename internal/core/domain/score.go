package domain

// Sample is one evaluation row: a user request and the raw columns field
// describing the schema it may query.
type Sample struct {
	ID      string `json:"sample_id"`
	Input   string `json:"user_input"`
	Columns string `json:"columns"`
}

// Schema parses the sample's columns field.
func (s Sample) Schema() ColumnSchema {
	return ParseColumns(s.Columns)
}

type ScoreValue string

const (
	Correct   ScoreValue = "CORRECT"
	Incorrect ScoreValue = "INCORRECT"
)

// Scorer names.
const (
	ScorerValidate = "validate"
	ScorerCritique = "critique"
)

// Score is the per-sample result of either scorer.
type Score struct {
	SampleID    string     `json:"sample_id"`
	Scorer      string     `json:"scorer"`
	Value       ScoreValue `json:"value"`
	Answer      string     `json:"answer,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
}

func (s Score) Correct() bool {
	return s.Value == Correct
}
