package gallery

import (
	"sort"

	"faceserver/faces"
)

// Match is one candidate identity for a queried face descriptor.
// Accepted reports whether the confidence crossed the match threshold;
// rejected candidates are still listed so callers can inspect near
// misses.
type Match struct {
	Name       string
	Region     faces.Region
	Distance   float64
	Confidence float64
	Accepted   bool
}

// Match compares the query descriptor against every registered face
// using the descriptor comparable with the query's method. Every
// comparable entry comes back with an accept/reject decision, sorted by
// ascending distance, best match first. Entries whose descriptors are
// not comparable with the query are skipped, never compared.
func (g *Gallery) Match(query faces.Descriptor, threshold float64) []Match {
	g.mu.RLock()
	matches := make([]Match, 0, len(g.entries))
	for _, entry := range g.entries {
		stored, ok := entry.descriptorFor(query.Method)
		if !ok {
			continue
		}
		distance, err := query.Distance(stored)
		if err != nil {
			continue
		}
		confidence := query.Confidence(distance)
		matches = append(matches, Match{
			Name:       entry.Name,
			Region:     entry.Region,
			Distance:   distance,
			Confidence: confidence,
			Accepted:   confidence >= threshold,
		})
	}
	g.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	return matches
}

// Best returns the closest accepted match, if any.
func (g *Gallery) Best(query faces.Descriptor, threshold float64) (Match, bool) {
	for _, m := range g.Match(query, threshold) {
		if m.Accepted {
			return m, true
		}
	}
	return Match{}, false
}
