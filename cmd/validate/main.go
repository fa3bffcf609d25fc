// Command validate checks a comparison request fixture against the properties
// the pipeline guarantees: every series cleans to a gap-free, date-ordered
// series that a second cleaning pass leaves unchanged, alignment yields equal
// gap-free sides, and every metric is a non-negative distance that is zero
// for a series against itself. With -reports it also recomputes each request
// and compares the ranking with the expected report fixture.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -requests data/mock/comparison_requests.json \
//	  -reports data/mock/synthetic_report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// builtRequest holds a decoded request and its cleaned series.
type builtRequest struct {
	req        domain.ComparisonRequest
	target     domain.BuiltSeries
	candidates []domain.BuiltSeries
}

func main() {
	requestsPath := flag.String("requests", "", "path to a JSON array of comparison requests")
	reportsPath := flag.String("reports", "", "optional path to expected comparison reports")
	flag.Parse()

	if *requestsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*requestsPath, *reportsPath); code != 0 {
		os.Exit(code)
	}
}

func run(requestsPath, reportsPath string) int {
	fmt.Println("=== Climate Series Integrity Validation ===")
	fmt.Println()

	raw, err := loadJSON[json.RawMessage](requestsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load requests: %v\n", err)
		return 1
	}

	decode, built := validateDecoding(raw)
	phases := []*phase{
		decode,
		validateCleaning(built),
		validateScoring(built),
	}

	if reportsPath != "" {
		expected, err := loadJSON[domain.ComparisonReport](reportsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load reports: %v\n", err)
			return 1
		}
		phases = append(phases, validateReports(built, expected))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Requests: %d decoded of %d, %d series\n", len(built), len(raw), countSeries(built))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func countSeries(built []builtRequest) int {
	n := 0
	for _, b := range built {
		n += 1 + len(b.candidates)
	}
	return n
}

// ── Phase 1: decoding and building ──

func validateDecoding(raw []json.RawMessage) (*phase, []builtRequest) {
	p := &phase{name: "Request decoding and cleaning"}
	builder := domain.NewBuilder()
	ctx := context.Background()

	var built []builtRequest
	for i, msg := range raw {
		req, err := domain.ParseComparisonRequest(domain.RawEvent{Value: msg})
		if err != nil {
			p.errorf("request %d: %v", i+1, err)
			continue
		}
		target, err := builder.Build(ctx, req.Target)
		if err != nil {
			p.errorf("%s target %s: %v", req.ID, req.Target.Name, err)
			continue
		}
		b := builtRequest{req: req, target: target}
		for _, in := range req.Candidates {
			c, err := builder.Build(ctx, in)
			if err != nil {
				p.errorf("%s candidate %s: %v", req.ID, in.Name, err)
				continue
			}
			b.candidates = append(b.candidates, c)
		}
		built = append(built, b)
	}
	return p, built
}

// ── Phase 2: cleaning properties ──

func validateCleaning(built []builtRequest) *phase {
	p := &phase{name: "Cleaning invariants"}
	opts := domain.DefaultCleanOptions()
	for _, b := range built {
		for _, s := range append([]domain.BuiltSeries{b.target}, b.candidates...) {
			checkCleanedSeries(p, b.req.ID, s, opts)
		}
	}
	return p
}

func checkCleanedSeries(p *phase, id string, s domain.BuiltSeries, opts domain.CleanOptions) {
	label := id + "/" + s.Name
	values := s.Series.Values()

	if len(s.Series) != s.Stats.Records {
		p.errorf("%s: %d records kept, stats say %d", label, len(s.Series), s.Stats.Records)
	}
	for i, r := range s.Series {
		if r.IsMissing() {
			p.errorf("%s: missing value at %s", label, r.Key())
		}
		if !r.HasDate() {
			p.errorf("%s: record %d has no date", label, i)
		}
		if i > 0 && !s.Series[i-1].FullDate.Before(r.FullDate) {
			p.errorf("%s: dates not strictly ascending at %s", label, r.Key())
		}
	}

	for i, flagged := range domain.DetectOutliers(values, opts.Window, opts.Threshold) {
		if flagged {
			p.errorf("%s: outlier still flagged at %s", label, s.Series[i].Key())
		}
	}

	again, _, err := domain.Clean(s.Series, opts)
	if err != nil {
		p.errorf("%s: second cleaning pass: %v", label, err)
		return
	}
	for i, v := range again.Values() {
		if !floatEq(v, values[i]) {
			p.errorf("%s: second cleaning pass changed %s from %g to %g", label, s.Series[i].Key(), values[i], v)
			return
		}
	}
}

// ── Phase 3: alignment and scoring properties ──

func validateScoring(built []builtRequest) *phase {
	p := &phase{name: "Alignment and similarity invariants"}
	for _, b := range built {
		self, err := domain.AlignSeries(b.target.Series, b.target.Series)
		if err != nil {
			p.errorf("%s: align target with itself: %v", b.req.ID, err)
			continue
		}
		if r, err := domain.Score(self); err != nil {
			p.errorf("%s: score target with itself: %v", b.req.ID, err)
		} else if r != (domain.SimilarityResult{}) {
			p.errorf("%s: target against itself scores %+v, want all zero", b.req.ID, r)
		}

		for _, c := range b.candidates {
			checkPair(p, b.req.ID, b.target, c)
		}
	}
	return p
}

func checkPair(p *phase, id string, target, candidate domain.BuiltSeries) {
	label := id + "/" + candidate.Name
	pair, err := domain.AlignSeries(target.Series, candidate.Series)
	if err != nil {
		p.errorf("%s: align: %v", label, err)
		return
	}
	if len(pair.A) != len(pair.B) || len(pair.A) != pair.Len() {
		p.errorf("%s: aligned lengths %d/%d/%d differ", label, len(pair.Keys), len(pair.A), len(pair.B))
		return
	}
	for i := range pair.A {
		if math.IsNaN(pair.A[i]) || math.IsNaN(pair.B[i]) {
			p.errorf("%s: aligned gap at %s", label, pair.Keys[i])
			return
		}
	}

	forward, err := domain.Score(pair)
	if err != nil {
		p.errorf("%s: score: %v", label, err)
		return
	}
	for _, m := range domain.Metrics() {
		v, _ := forward.Value(m)
		if v < 0 || math.IsNaN(v) {
			p.errorf("%s: %s = %g is not a non-negative distance", label, m, v)
		}
	}

	backward, err := domain.Score(domain.AlignedPair{Keys: pair.Keys, A: pair.B, B: pair.A})
	if err != nil {
		p.errorf("%s: reverse score: %v", label, err)
		return
	}
	if !floatEq(forward.DTW, backward.DTW) {
		p.errorf("%s: dtw not symmetric: %g vs %g", label, forward.DTW, backward.DTW)
	}
	if !floatEq(forward.Frechet, backward.Frechet) {
		p.errorf("%s: frechet_dist not symmetric: %g vs %g", label, forward.Frechet, backward.Frechet)
	}
}

// ── Phase 4: expected reports ──

func validateReports(built []builtRequest, expected []domain.ComparisonReport) *phase {
	p := &phase{name: "Expected report reproduction"}

	byID := make(map[string]domain.ComparisonReport, len(expected))
	for _, r := range expected {
		byID[r.ID] = r
	}

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2018, time.December, 31, 12, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)
	transformer := pipeline.NewComparisonTransformer(domain.NewBuilder(), domain.DefaultMetric, 4, slog.Default(), nil)

	for _, b := range built {
		want, ok := byID[b.req.ID]
		if !ok {
			continue
		}
		got, err := transformer.Compare(context.Background(), b.req)
		if err != nil {
			p.errorf("%s: compare: %v", b.req.ID, err)
			continue
		}
		compareReports(p, got, want)
		delete(byID, b.req.ID)
	}
	for id := range byID {
		p.errorf("%s: expected report has no matching request", id)
	}
	return p
}

func compareReports(p *phase, got, want domain.ComparisonReport) {
	if got.Metric != want.Metric {
		p.errorf("%s: metric %s, want %s", got.ID, got.Metric, want.Metric)
	}
	if got.BestMatch != want.BestMatch {
		p.errorf("%s: best match %q, want %q", got.ID, got.BestMatch, want.BestMatch)
	}
	if len(got.Ranking) != len(want.Ranking) {
		p.errorf("%s: %d ranked candidates, want %d", got.ID, len(got.Ranking), len(want.Ranking))
		return
	}
	for i := range got.Ranking {
		g, w := got.Ranking[i], want.Ranking[i]
		if g.Name != w.Name {
			p.errorf("%s: rank %d is %q, want %q", got.ID, i+1, g.Name, w.Name)
			continue
		}
		if !floatEq(g.Score, w.Score) {
			p.errorf("%s: %s score %g, want %g", got.ID, g.Name, g.Score, w.Score)
		}
		if g.Stats != w.Stats {
			p.errorf("%s: %s stats %+v, want %+v", got.ID, g.Name, g.Stats, w.Stats)
		}
	}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
