package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CandidateFailure records a candidate that could not be built or scored.
type CandidateFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ComparisonReport is the result of one ComparisonRequest.
type ComparisonReport struct {
	ID          string             `json:"id"`
	Target      string             `json:"target"`
	Metric      Metric             `json:"metric"`
	TargetStats CleanStats         `json:"target_stats"`
	Year        YearSummary        `json:"year"`
	Months      []MonthSummary     `json:"months"`
	Ranking     []RankedCandidate  `json:"ranking"`
	BestMatch   string             `json:"best_match,omitempty"`
	Failures    []CandidateFailure `json:"failures,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// NewComparisonReport ranks the scored candidates and summarizes the target.
func NewComparisonReport(id string, target BuiltSeries, metric Metric, scored []Candidate, failures []CandidateFailure) (ComparisonReport, error) {
	ranking, err := Rank(scored, metric)
	if err != nil {
		return ComparisonReport{}, err
	}
	report := ComparisonReport{
		ID:          id,
		Target:      target.Name,
		Metric:      metric,
		TargetStats: target.Stats,
		Year:        SummarizeYear(target.Series),
		Months:      SummarizeMonths(target.Series),
		Ranking:     ranking,
		Failures:    failures,
		GeneratedAt: clock.Now().UTC(),
	}
	if best, ok := Best(ranking); ok {
		report.BestMatch = best.Name
	}
	return report, nil
}

// SerializeReport marshals a report into an OutputEvent keyed by report ID.
func SerializeReport(report ComparisonReport) (OutputEvent, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize comparison report: %w", err)
	}
	return OutputEvent{
		Key:   []byte(report.ID),
		Value: data,
		Headers: map[string]string{
			"metric":       string(report.Metric),
			"best_match":   report.BestMatch,
			"candidates":   strconv.Itoa(len(report.Ranking)),
			"generated_at": report.GeneratedAt.Format(time.RFC3339),
		},
	}, nil
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID          string    `json:"id"`
	Target      string    `json:"target"`
	Metric      Metric    `json:"metric"`
	BestMatch   string    `json:"best_match,omitempty"`
	Candidates  int       `json:"candidates"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summary returns the listing view of the report.
func (r ComparisonReport) Summary() ReportSummary {
	return ReportSummary{
		ID:          r.ID,
		Target:      r.Target,
		Metric:      r.Metric,
		BestMatch:   r.BestMatch,
		Candidates:  len(r.Ranking),
		GeneratedAt: r.GeneratedAt,
	}
}
