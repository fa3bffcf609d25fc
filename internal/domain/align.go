package domain

import (
	"fmt"
	"math"
	"sort"
)

// AlignedPair holds two equal-length series on a shared key axis: A[i] and B[i]
// belong to Keys[i].
type AlignedPair struct {
	Keys []string  `json:"keys"`
	A    []float64 `json:"a"`
	B    []float64 `json:"b"`
}

// Len is the number of aligned positions.
func (p AlignedPair) Len() int {
	return len(p.Keys)
}

// Curves returns both sides as points over the synthetic axis 0..N-1.
func (p AlignedPair) Curves() (a, b []Point) {
	return arrange(p.A), arrange(p.B)
}

func arrange(values []float64) []Point {
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{X: float64(i), Y: v}
	}
	return pts
}

// Align places two keyed series on the sorted union of their keys and fills
// the positions each side lacks. When a key repeats within one series the
// first value wins. If the series share no key, the edges are filled by
// propagation and may not track the other side closely.
func Align(keys1 []string, values1 []float64, keys2 []string, values2 []float64) (AlignedPair, error) {
	if len(keys1) != len(values1) {
		return AlignedPair{}, fmt.Errorf("first series has %d keys and %d values: %w", len(keys1), len(values1), ErrLengthMismatch)
	}
	if len(keys2) != len(values2) {
		return AlignedPair{}, fmt.Errorf("second series has %d keys and %d values: %w", len(keys2), len(values2), ErrLengthMismatch)
	}

	idx1 := indexKeys(keys1)
	idx2 := indexKeys(keys2)
	union := make([]string, 0, len(idx1)+len(idx2))
	for k := range idx1 {
		union = append(union, k)
	}
	for k := range idx2 {
		if _, ok := idx1[k]; !ok {
			union = append(union, k)
		}
	}
	sort.Strings(union)

	a := placeValues(union, idx1, values1)
	b := placeValues(union, idx2, values2)
	if hasMissing(a) {
		return AlignedPair{}, fmt.Errorf("first series: %w", ErrNoNumericValues)
	}
	if hasMissing(b) {
		return AlignedPair{}, fmt.Errorf("second series: %w", ErrNoNumericValues)
	}
	return AlignedPair{Keys: union, A: a, B: b}, nil
}

// AlignSeries aligns two cleaned series on their ISO dates.
func AlignSeries(a, b CleanedSeries) (AlignedPair, error) {
	return Align(a.Keys(), a.Values(), b.Keys(), b.Values())
}

func indexKeys(keys []string) map[string]int {
	idx := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, ok := idx[k]; !ok {
			idx[k] = i
		}
	}
	return idx
}

func placeValues(union []string, idx map[string]int, values []float64) []float64 {
	out := make([]float64, len(union))
	for i, k := range union {
		out[i] = math.NaN()
		if j, ok := idx[k]; ok {
			out[i] = values[j]
		}
	}
	return FillGaps(out)
}

func hasMissing(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
