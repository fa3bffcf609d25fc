package domain

import (
	"math"
	"sort"
)

// Candidate is one scored series waiting to be ranked.
type Candidate struct {
	Name   string           `json:"name"`
	Result SimilarityResult `json:"result"`
	Stats  CleanStats       `json:"stats"`
}

// RankedCandidate is a candidate with the score of the ranking metric.
type RankedCandidate struct {
	Rank   int              `json:"rank"`
	Name   string           `json:"name"`
	Score  float64          `json:"score"`
	Result SimilarityResult `json:"result"`
	Stats  CleanStats       `json:"stats"`
}

// Rank orders candidates by ascending score on metric, so the closest match
// comes first. Ties keep their input order and NaN scores sort last.
func Rank(candidates []Candidate, metric Metric) ([]RankedCandidate, error) {
	out := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		score, err := c.Result.Value(metric)
		if err != nil {
			return nil, err
		}
		out[i] = RankedCandidate{Name: c.Name, Score: score, Result: c.Result, Stats: c.Stats}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Score, out[j].Score
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a < b
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// Best returns the first ranked candidate, if any.
func Best(ranked []RankedCandidate) (RankedCandidate, bool) {
	if len(ranked) == 0 {
		return RankedCandidate{}, false
	}
	return ranked[0], true
}
