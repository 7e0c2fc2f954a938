package port

import "github.com/guillermoBallester/nlqeval/internal/core/domain"

// QueryValidator checks a normalized completion against a sample's columns.
type QueryValidator interface {
	Check(raw string, schema domain.ColumnSchema) domain.Verdict
}

// CritiqueAdjudicator interprets a critic model's raw reply.
type CritiqueAdjudicator interface {
	Adjudicate(reply string) domain.Critique
}
