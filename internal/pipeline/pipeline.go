package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
)

// BatchExtractor reads up to batchSize comparison requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw comparison request into a serialized report.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Loaders writes every batch to each loader in order and stops at the first failure.
type Loaders []BatchLoader

func (ls Loaders) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	for i, l := range ls {
		if err := l.LoadBatch(ctx, events); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}

const (
	defaultBatchSize  = 50
	initialBackoff    = 200 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many requests are read per cycle.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithClock replaces the clock used for retry delays and batch timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithMaxBackoff caps the retry delay after repeated Kafka failures.
func WithMaxBackoff(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.maxBackoff = d
		}
	}
}

// Pipeline reads comparison requests, turns each into a report and writes the
// reports out, committing a request only after its report is written.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
	maxBackoff  time.Duration
	backoff     time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   defaultBatchSize,
		maxBackoff:  defaultMaxBackoff,
		backoff:     initialBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has produced at least one report,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not produced any reports yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.cycle(ctx) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// cycle runs one extract-compare-load round. It returns false when the
// pipeline should stop.
func (p *Pipeline) cycle(ctx context.Context) bool {
	start := p.clock.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.retryAfterBackoff(ctx)
	}
	if len(batch) == 0 {
		return true
	}

	p.metrics.RequestsConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	p.backoff = initialBackoff

	reports, done, err := p.compareAll(ctx, batch)
	if err != nil {
		p.logger.Info("batch interrupted, offsets left uncommitted", "error", err, "batch_size", len(batch))
		return false
	}
	if len(reports) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, reports); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(reports))
		return p.retryAfterBackoff(ctx)
	}
	p.metrics.ReportsProduced.Add(float64(len(reports)))
	for _, raw := range done {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// compareAll turns every request into a report. Requests that cannot be
// compared are committed immediately so a bad payload is never retried. If the
// context ends mid-batch it returns the context error and nothing further is
// committed, so the interrupted requests are redelivered.
func (p *Pipeline) compareAll(ctx context.Context, batch []domain.RawEvent) ([]domain.OutputEvent, []domain.RawEvent, error) {
	reports := make([]domain.OutputEvent, 0, len(batch))
	done := make([]domain.RawEvent, 0, len(batch))

	for _, raw := range batch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			if isContextErr(err) {
				return nil, nil, err
			}
			p.logger.Warn("comparison failed, skipping request",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		reports = append(reports, out)
		done = append(done, raw)
	}
	return reports, done, nil
}

// retryAfterBackoff sleeps for the current delay and doubles it for the next
// failure. It returns false if the context ends first.
func (p *Pipeline) retryAfterBackoff(ctx context.Context) bool {
	timer := p.clock.NewTimer(p.backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
	}
	p.backoff = min(p.backoff*2, p.maxBackoff)
	return true
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
