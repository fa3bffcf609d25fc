package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

const smallRequest = `{
	"id": "req-7",
	"target": {"name": "capital", "records": [
		{"month": 1, "day": "01", "temperature": 1},
		{"month": 1, "day": "02", "temperature": "NA"},
		{"month": 2, "day": "01", "temperature": 2},
		{"month": 2, "day": "02", "temperature": 4}
	]},
	"candidates": [
		{"name": "far", "records": [
			{"month": 1, "day": "01", "temperature": 9},
			{"month": 1, "day": "02", "temperature": 9},
			{"month": 2, "day": "01", "temperature": 9},
			{"month": 2, "day": "02", "temperature": 9}
		]},
		{"name": "twin", "table": {"rows": [["01", 1, 2], ["02", null, 4]]},
			"schema": {"day_column": 0, "month_columns": [{"month": 1, "column": 1}, {"month": 2, "column": 2}]}},
		{"name": "broken", "records": [{"month": 1, "day": "01", "temperature": "NA"}]}
	]
}`

func freezeClock(t *testing.T) clockwork.Clock {
	t.Helper()
	c := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	domain.SetClock(c)
	t.Cleanup(func() { domain.SetClock(nil) })
	return c
}

func newTransformer(workers int) *pipeline.ComparisonTransformer {
	return pipeline.NewComparisonTransformer(domain.NewBuilder(), domain.MetricDTW, workers, slog.Default(), observability.NewMetricsForTesting())
}

func rankingNames(report domain.ComparisonReport) []string {
	out := make([]string, len(report.Ranking))
	for i, r := range report.Ranking {
		out[i] = r.Name
	}
	return out
}

func TestComparisonTransformer_Transform(t *testing.T) {
	clock := freezeClock(t)

	out, err := newTransformer(2).Transform(context.Background(), domain.RawEvent{Value: []byte(smallRequest)})
	require.NoError(t, err)
	assert.Equal(t, []byte("req-7"), out.Key)
	assert.Equal(t, "twin", out.Headers["best_match"])
	assert.Equal(t, "dtw", out.Headers["metric"])
	assert.Equal(t, clock.Now().Format(time.RFC3339), out.Headers["generated_at"])

	var report domain.ComparisonReport
	require.NoError(t, json.Unmarshal(out.Value, &report))
	if diff := cmp.Diff([]string{"twin", "far"}, rankingNames(report)); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.SimilarityResult{}, report.Ranking[0].Result)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].Name)
	assert.Equal(t, 1, report.TargetStats.Interpolated)
}

func TestComparisonTransformer_RequestMetricOverrides(t *testing.T) {
	freezeClock(t)
	var req domain.ComparisonRequest
	require.NoError(t, json.Unmarshal([]byte(smallRequest), &req))
	req.Metric = "std"

	report, err := newTransformer(1).Compare(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.MetricStd, report.Metric)
	assert.Equal(t, "twin", report.BestMatch)
}

func TestComparisonTransformer_Errors(t *testing.T) {
	tfm := newTransformer(4)

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	require.Error(t, err)

	var req domain.ComparisonRequest
	require.NoError(t, json.Unmarshal([]byte(smallRequest), &req))
	req.Candidates = req.Candidates[2:]
	_, err = tfm.Compare(context.Background(), req)
	require.ErrorIs(t, err, pipeline.ErrNoScoredCandidates)

	req.Target = domain.SeriesInput{Name: "nothing", Records: []domain.LongRow{{Month: 1, Day: "01", Temperature: "NA"}}}
	_, err = tfm.Compare(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrNoNumericValues)
}

type blockingBuilder struct{}

func (blockingBuilder) Build(ctx context.Context, in domain.SeriesInput) (domain.BuiltSeries, error) {
	if in.Name == "capital" {
		return domain.NewBuilder().Build(ctx, in)
	}
	<-ctx.Done()
	return domain.BuiltSeries{}, ctx.Err()
}

func TestComparisonTransformer_Cancelled(t *testing.T) {
	var req domain.ComparisonRequest
	require.NoError(t, json.Unmarshal([]byte(smallRequest), &req))
	tfm := pipeline.NewComparisonTransformer(blockingBuilder{}, domain.MetricDTW, 2, slog.Default(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tfm.Compare(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
