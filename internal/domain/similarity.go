package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Point is a curve vertex.
type Point struct {
	X float64
	Y float64
}

// Metric names one field of a SimilarityResult.
type Metric string

const (
	MetricDTW     Metric = "dtw"
	MetricFrechet Metric = "frechet_dist"
	MetricPCM     Metric = "pcm"
	MetricArea    Metric = "area"
	MetricStd     Metric = "std"
)

// DefaultMetric orders rankings when no metric is configured.
const DefaultMetric = MetricDTW

// Metrics lists every supported metric in report order.
func Metrics() []Metric {
	return []Metric{MetricDTW, MetricFrechet, MetricPCM, MetricArea, MetricStd}
}

// ParseMetric validates a metric name. The empty string selects DefaultMetric.
func ParseMetric(name string) (Metric, error) {
	if name == "" {
		return DefaultMetric, nil
	}
	for _, m := range Metrics() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// SimilarityResult holds every metric for one pair of series. All values are
// non-negative distances.
type SimilarityResult struct {
	DTW     float64 `json:"dtw"`
	Frechet float64 `json:"frechet_dist"`
	PCM     float64 `json:"pcm"`
	Area    float64 `json:"area"`
	Std     float64 `json:"std"`
}

// Value returns the field selected by m.
func (r SimilarityResult) Value(m Metric) (float64, error) {
	switch m {
	case MetricDTW:
		return r.DTW, nil
	case MetricFrechet:
		return r.Frechet, nil
	case MetricPCM:
		return r.PCM, nil
	case MetricArea:
		return r.Area, nil
	case MetricStd:
		return r.Std, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
	}
}

// Score computes every metric between the two sides of an aligned pair.
// Both sides must have the same length, at least two points and no gaps.
func Score(pair AlignedPair) (SimilarityResult, error) {
	if len(pair.A) != len(pair.B) {
		return SimilarityResult{}, fmt.Errorf("score %d against %d points: %w", len(pair.A), len(pair.B), ErrLengthMismatch)
	}
	if len(pair.A) < 2 {
		return SimilarityResult{}, fmt.Errorf("score %d points: %w", len(pair.A), ErrDegenerateSeries)
	}
	if hasMissing(pair.A) || hasMissing(pair.B) {
		return SimilarityResult{}, ErrMissingValue
	}

	a, b := pair.Curves()
	return SimilarityResult{
		DTW:     dtw(a, b),
		Frechet: discreteFrechet(a, b),
		PCM:     pcm(a, b),
		Area:    areaBetween(a, b),
		Std:     math.Abs(stat.PopStdDev(pair.A, nil) - stat.PopStdDev(pair.B, nil)),
	}, nil
}

func distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// dtw returns the cumulative cost D[n-1][m-1] of the cheapest warping path,
// keeping two rows of the table.
func dtw(a, b []Point) float64 {
	m := len(b)
	prev := make([]float64, m)
	cur := make([]float64, m)
	for i := range a {
		for j := range b {
			cost := distance(a[i], b[j])
			switch {
			case i == 0 && j == 0:
				cur[j] = cost
			case i == 0:
				cur[j] = cost + cur[j-1]
			case j == 0:
				cur[j] = cost + prev[j]
			default:
				cur[j] = cost + min(prev[j], cur[j-1], prev[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[m-1]
}

// discreteFrechet returns the smallest leash length over all monotone couplings.
func discreteFrechet(a, b []Point) float64 {
	m := len(b)
	prev := make([]float64, m)
	cur := make([]float64, m)
	for i := range a {
		for j := range b {
			d := distance(a[i], b[j])
			switch {
			case i == 0 && j == 0:
				cur[j] = d
			case i == 0:
				cur[j] = max(cur[j-1], d)
			case j == 0:
				cur[j] = max(prev[j], d)
			default:
				cur[j] = max(min(prev[j], cur[j-1], prev[j-1]), d)
			}
		}
		prev, cur = cur, prev
	}
	return prev[m-1]
}

// pcmOffsets is the number of slide steps tried when one curve is shorter.
const pcmOffsets = 16

// pcm maps the shorter curve onto the longer one by arc length, sliding it
// along the longer curve, and returns the smallest area enclosed between the
// matched points. Both curves are first scaled into the unit square.
func pcm(a, b []Point) float64 {
	na, nb := normalizeCurves(a, b)
	long, short := na, nb
	ll, ls := arcLength(na), arcLength(nb)
	if ls[len(ls)-1] > ll[len(ll)-1] {
		long, short = short, long
		ll, ls = ls, ll
	}

	total := ll[len(ll)-1]
	if total == 0 {
		return 0
	}
	for i := range ll {
		ll[i] /= total
	}
	for i := range ls {
		ls[i] /= total
	}

	slack := 1 - ls[len(ls)-1]
	best := math.Inf(1)
	for k := 0; k <= pcmOffsets; k++ {
		offset := slack * float64(k) / pcmOffsets
		best = min(best, mappedArea(long, ll, short, ls, offset))
		if slack <= 0 {
			break
		}
	}
	return best
}

// mappedArea couples short (arc positions ls) with long (arc positions ll)
// shifted by offset and sums the quadrilaterals between matched points.
func mappedArea(long []Point, ll []float64, short []Point, ls []float64, offset float64) float64 {
	end := ls[len(ls)-1]
	params := append(make([]float64, 0, len(ls)+len(ll)), ls...)
	for _, s := range ll {
		if p := s - offset; p > 0 && p < end {
			params = append(params, p)
		}
	}
	sort.Float64s(params)

	area := 0.0
	var prevShort, prevLong Point
	for i, p := range params {
		ps := pointAt(short, ls, p)
		pl := pointAt(long, ll, p+offset)
		if i > 0 {
			area += polygonArea([]Point{prevShort, ps, pl, prevLong})
		}
		prevShort, prevLong = ps, pl
	}
	return area
}

// normalizeCurves scales both curves with the joint x and y ranges.
func normalizeCurves(a, b []Point) ([]Point, []Point) {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, curve := range [][]Point{a, b} {
		for _, p := range curve {
			xmin, xmax = min(xmin, p.X), max(xmax, p.X)
			ymin, ymax = min(ymin, p.Y), max(ymax, p.Y)
		}
	}
	xr, yr := xmax-xmin, ymax-ymin
	if xr == 0 {
		xr = 1
	}
	if yr == 0 {
		yr = 1
	}
	scale := func(curve []Point) []Point {
		out := make([]Point, len(curve))
		for i, p := range curve {
			out[i] = Point{X: (p.X - xmin) / xr, Y: (p.Y - ymin) / yr}
		}
		return out
	}
	return scale(a), scale(b)
}

// arcLength returns the cumulative polyline length at every vertex.
func arcLength(curve []Point) []float64 {
	out := make([]float64, len(curve))
	for i := 1; i < len(curve); i++ {
		out[i] = out[i-1] + distance(curve[i-1], curve[i])
	}
	return out
}

// pointAt interpolates the point at arc position s, clamped to the curve.
func pointAt(curve []Point, arc []float64, s float64) Point {
	if s <= arc[0] {
		return curve[0]
	}
	last := len(arc) - 1
	if s >= arc[last] {
		return curve[last]
	}
	j := sort.SearchFloat64s(arc, s)
	seg := arc[j] - arc[j-1]
	if seg == 0 {
		return curve[j]
	}
	t := (s - arc[j-1]) / seg
	return Point{
		X: curve[j-1].X + t*(curve[j].X-curve[j-1].X),
		Y: curve[j-1].Y + t*(curve[j].Y-curve[j-1].Y),
	}
}

// areaBetween integrates the unsigned area between two curves that share
// their x coordinates, segment by segment.
func areaBetween(a, b []Point) float64 {
	total := 0.0
	for i := 1; i < len(a); i++ {
		total += segmentArea(a[i-1], a[i], b[i-1], b[i])
	}
	return total
}

// segmentArea is the area between segments a0-a1 and b0-b1. When the segments
// cross, the quadrilateral would be self-intersecting, so it is split into two
// triangles at the crossing.
func segmentArea(a0, a1, b0, b1 Point) float64 {
	d0, d1 := a0.Y-b0.Y, a1.Y-b1.Y
	if d0*d1 >= 0 {
		return polygonArea([]Point{a0, a1, b1, b0})
	}
	t := d0 / (d0 - d1)
	cross := Point{X: a0.X + t*(a1.X-a0.X), Y: a0.Y + t*(a1.Y-a0.Y)}
	return polygonArea([]Point{a0, cross, b0}) + polygonArea([]Point{cross, a1, b1})
}

// polygonArea is the shoelace area of a simple polygon.
func polygonArea(pts []Point) float64 {
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}
