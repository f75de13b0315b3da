package datatypes

// RetrievedMatch is one nearest-neighbor hit returned by a vector store
// query. Matches arrive in the provider's descending-similarity order and
// are never re-sorted downstream. Metadata keys are provider-defined; for
// professor records the usual keys are "subject" and "stars".
type RetrievedMatch struct {
	Id       string
	Score    float64
	Metadata map[string]any
}

// SourceInfo is the client-facing summary of a retrieved match, emitted on
// the streaming surfaces so callers can show which records grounded the
// answer.
type SourceInfo struct {
	Source string  `json:"source"`
	Score  float64 `json:"score,omitempty"`
}

// Sources converts matches into client-facing source summaries, preserving
// the provider's order.
func Sources(matches []RetrievedMatch) []SourceInfo {
	if len(matches) == 0 {
		return nil
	}
	sources := make([]SourceInfo, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, SourceInfo{Source: m.Id, Score: m.Score})
	}
	return sources
}
