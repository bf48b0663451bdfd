package complete

import (
	"sort"

	"github.com/hbollon/go-edlib"
)

// MinSimilarity is the default lowest Jaro-Winkler score Suggest reports.
const MinSimilarity = 0.7

// Suggestion is a near-miss name match.
type Suggestion struct {
	Item
	Score float64 `json:"score"`
}

// Suggest returns symbols whose names are similar to query, best first.
// It is meant for "did you mean" hints when an exact lookup finds nothing.
func (p *Provider) Suggest(query string, max int) []Suggestion {
	if max <= 0 {
		max = DefaultMaxResults
	}
	if query == "" {
		return nil
	}
	var out []Suggestion
	for _, s := range p.table.AllSymbols() {
		score := similarity(query, s.Name)
		if score < p.minSimilarity {
			continue
		}
		out = append(out, Suggestion{Item: toItem(s), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}
