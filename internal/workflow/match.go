package workflow

import "orderdesk/internal"

// MatchSession holds one round of match results and the user's confirmed
// selections. A fresh session defaults every query to its first candidate;
// the backend pre-sorts by descending score.
type MatchSession struct {
	Results    map[string][]internal.MatchCandidate
	Selections map[string]string
}

func NewMatchSession(results map[string][]internal.MatchCandidate) *MatchSession {
	s := &MatchSession{
		Results:    results,
		Selections: map[string]string{},
	}
	for query, candidates := range results {
		if len(candidates) > 0 {
			s.Selections[query] = candidates[0].Name
		}
	}
	return s
}

// Confirm overwrites the selection for query; last write wins. chosen is not
// checked against the returned candidates.
func (s *MatchSession) Confirm(query, chosen string) {
	s.Selections[query] = chosen
}

// ApplySelections returns a new item slice with each name replaced by the
// selection keyed by its current name, when present. The input is not
// mutated; callers decide whether to write the result back into the shared
// order.
func ApplySelections(items []internal.LineItem, selections map[string]string) []internal.LineItem {
	out := make([]internal.LineItem, len(items))
	copy(out, items)
	for i := range out {
		if chosen, ok := selections[out[i].Name]; ok {
			out[i].Name = chosen
		}
	}
	return out
}
