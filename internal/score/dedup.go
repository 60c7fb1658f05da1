package score

import "github.com/david/rfp-harvester/internal/models"

// Deduplicate collapses opportunities sharing a content hash. The
// first occurrence wins all fields; keywords from later duplicates are
// unioned in so no relevance signal is lost. Input order is preserved.
func Deduplicate(opps []models.Opportunity) []models.Opportunity {
	seen := make(map[string]int, len(opps))
	out := make([]models.Opportunity, 0, len(opps))

	for _, opp := range opps {
		h := opp.Hash()
		if idx, dup := seen[h]; dup {
			out[idx].Keywords = unionKeywords(out[idx].Keywords, opp.Keywords)
			continue
		}
		seen[h] = len(out)
		out = append(out, opp)
	}
	return out
}

func unionKeywords(a, b []string) []string {
	present := make(map[string]bool, len(a))
	for _, kw := range a {
		present[kw] = true
	}
	for _, kw := range b {
		if !present[kw] {
			present[kw] = true
			a = append(a, kw)
		}
	}
	return a
}
