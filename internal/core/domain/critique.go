package domain

import "encoding/json"

// Outcome is the critic's judgement of a generated query.
type Outcome string

const (
	OutcomeGood Outcome = "good"
	OutcomeBad  Outcome = "bad"
)

// Critique is the adjudicated reply of a critic model.
type Critique struct {
	Outcome     Outcome `json:"outcome"`
	Explanation string  `json:"explanation"`
}

const critiqueParseError = "JSON parsing error:\n"

// Adjudicator turns a critic model's raw reply into a Critique. Like the
// validator it is total: an unusable reply is a bad outcome whose
// explanation carries the raw text for review.
type Adjudicator struct{}

func NewAdjudicator() *Adjudicator {
	return &Adjudicator{}
}

func (a *Adjudicator) Adjudicate(reply string) Critique {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(NormalizeCompletion(reply)), &parsed); err != nil || parsed == nil {
		return unparsable(reply)
	}

	outcome, ok := parsed["outcome"].(string)
	if !ok {
		return unparsable(reply)
	}
	explanation, ok := parsed["critique"].(string)
	if !ok {
		return unparsable(reply)
	}

	if Outcome(outcome) == OutcomeGood {
		return Critique{Outcome: OutcomeGood, Explanation: explanation}
	}
	return Critique{Outcome: OutcomeBad, Explanation: explanation}
}

func unparsable(reply string) Critique {
	return Critique{Outcome: OutcomeBad, Explanation: critiqueParseError + reply}
}
