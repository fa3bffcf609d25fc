package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
)

// ErrNoScoredCandidates means every candidate of a request failed.
var ErrNoScoredCandidates = errors.New("no candidate could be scored")

// ComparisonTransformer implements Transformer: it builds the target and every
// candidate, aligns and scores each candidate against the target, and ranks
// them into a report.
type ComparisonTransformer struct {
	builder domain.SeriesBuilder
	metric  domain.Metric
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewComparisonTransformer creates a transformer. metric is used for requests
// that do not name one; workers bounds how many candidates are scored at once.
func NewComparisonTransformer(builder domain.SeriesBuilder, metric domain.Metric, workers int, logger *slog.Logger, metrics *observability.Metrics) *ComparisonTransformer {
	return &ComparisonTransformer{
		builder: builder,
		metric:  metric,
		workers: max(workers, 1),
		logger:  logger,
		metrics: metrics,
	}
}

func (t *ComparisonTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseComparisonRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	report, err := t.Compare(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeReport(report)
}

type candidateOutcome struct {
	candidate domain.Candidate
	outliers  int
	err       error
}

// Compare runs one request end to end. A candidate that fails is reported in
// the report's failures; the request fails only if no candidate is scored.
func (t *ComparisonTransformer) Compare(ctx context.Context, req domain.ComparisonRequest) (domain.ComparisonReport, error) {
	metric := t.metric
	if req.Metric != "" {
		m, err := domain.ParseMetric(req.Metric)
		if err != nil {
			return domain.ComparisonReport{}, err
		}
		metric = m
	}

	target, err := t.builder.Build(ctx, req.Target)
	if err != nil {
		return domain.ComparisonReport{}, fmt.Errorf("build target: %w", err)
	}

	outcomes := make([]candidateOutcome, len(req.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, in := range req.Candidates {
		g.Go(func() error {
			outcomes[i] = t.scoreCandidate(gctx, target, in)
			if isContextErr(outcomes[i].err) {
				return outcomes[i].err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ComparisonReport{}, err
	}

	scored := make([]domain.Candidate, 0, len(outcomes))
	var failures []domain.CandidateFailure
	outliers := target.Stats.Outliers
	for i, o := range outcomes {
		if o.err != nil {
			t.logger.Warn("candidate skipped", "request", req.ID, "candidate", req.Candidates[i].Name, "error", o.err)
			t.observeCandidate("failed")
			failures = append(failures, domain.CandidateFailure{Name: req.Candidates[i].Name, Error: o.err.Error()})
			continue
		}
		t.observeCandidate("scored")
		outliers += o.outliers
		scored = append(scored, o.candidate)
	}
	if t.metrics != nil {
		t.metrics.OutliersCorrected.Add(float64(outliers))
	}
	if len(scored) == 0 {
		return domain.ComparisonReport{}, fmt.Errorf("request %s: %w", req.ID, ErrNoScoredCandidates)
	}

	report, err := domain.NewComparisonReport(req.ID, target, metric, scored, failures)
	if err != nil {
		return domain.ComparisonReport{}, err
	}
	t.logger.Debug("comparison complete",
		"request", req.ID,
		"metric", metric,
		"candidates", len(scored),
		"failures", len(failures),
		"best_match", report.BestMatch,
	)
	return report, nil
}

func (t *ComparisonTransformer) scoreCandidate(ctx context.Context, target domain.BuiltSeries, in domain.SeriesInput) candidateOutcome {
	start := time.Now()
	built, err := t.builder.Build(ctx, in)
	if err != nil {
		return candidateOutcome{err: err}
	}
	pair, err := domain.AlignSeries(target.Series, built.Series)
	if err != nil {
		return candidateOutcome{err: fmt.Errorf("align %q: %w", built.Name, err)}
	}
	result, err := domain.Score(pair)
	if err != nil {
		return candidateOutcome{err: fmt.Errorf("score %q: %w", built.Name, err)}
	}
	if t.metrics != nil {
		t.metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	}
	return candidateOutcome{
		candidate: domain.Candidate{Name: built.Name, Result: result, Stats: built.Stats},
		outliers:  built.Stats.Outliers,
	}
}

func (t *ComparisonTransformer) observeCandidate(outcome string) {
	if t.metrics == nil {
		return
	}
	t.metrics.CandidatesScored.WithLabelValues(outcome).Inc()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
