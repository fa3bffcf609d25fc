package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func rawRequest(id string) domain.RawEvent {
	return domain.RawEvent{Key: []byte(id), Value: []byte(`{"id":"` + id + `"}`), Topic: "climate-comparison-requests"}
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawRequest("req-1"), rawRequest("req-2")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), metrics, pipeline.WithBatchSize(10))
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	require.Equal(t, 2, ldr.count())
	assert.Equal(t, []byte("req-1"), ldr.loaded[0].Key)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
}

func TestPipeline_Run_TransformErrorCommitsAndSkips(t *testing.T) {
	var commits atomic.Int32
	raw := rawRequest("bad")
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ldr := &mockLoader{}
	p := pipeline.New(
		&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{err: errors.New("bad data")},
		ldr, slog.Default(), observability.NewMetricsForTesting(),
	)

	runFor(t, p, 300*time.Millisecond)

	assert.Zero(t, ldr.count())
	assert.Equal(t, int32(1), commits.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var committed atomic.Bool
	raw := rawRequest("req-5")
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	p := pipeline.New(
		&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{}, &mockLoader{}, slog.Default(), observability.NewMetricsForTesting(),
	)

	runFor(t, p, 300*time.Millisecond)
	assert.True(t, committed.Load())
}

func TestPipeline_Run_LoadFailureLeavesOffsetUncommitted(t *testing.T) {
	var committed atomic.Bool
	raw := rawRequest("req-6")
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ldr := &mockLoader{err: errors.New("broker down")}
	p := pipeline.New(
		&mockExtractor{batches: [][]domain.RawEvent{{raw}}},
		&mockTransformer{}, ldr, slog.Default(), observability.NewMetricsForTesting(),
	)

	runFor(t, p, 300*time.Millisecond)
	assert.False(t, committed.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

// cancellingExtractor hands out one batch and cancels the run as it does so.
type cancellingExtractor struct {
	batch  []domain.RawEvent
	cancel context.CancelFunc
	served atomic.Bool
}

func (m *cancellingExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if m.served.Swap(true) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.cancel()
	return m.batch, nil
}

type ctxTransformer struct{}

func (ctxTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("compare %s: %w", raw.Key, err)
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

func TestPipeline_Run_ShutdownMidBatchLeavesOffsetsUncommitted(t *testing.T) {
	tests := []struct {
		name        string
		transformer func() pipeline.Transformer
		batch       func(t *testing.T) []domain.RawEvent
	}{
		{
			name:        "context-aware transformer",
			transformer: func() pipeline.Transformer { return ctxTransformer{} },
			batch: func(*testing.T) []domain.RawEvent {
				return []domain.RawEvent{rawRequest("req-8"), rawRequest("req-9")}
			},
		},
		{
			name:        "comparison transformer",
			transformer: func() pipeline.Transformer { return newTransformer(2) },
			batch:       func(t *testing.T) []domain.RawEvent { return readMockRequests(t)[:1] },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var commits atomic.Int32
			batch := tt.batch(t)
			for i := range batch {
				batch[i].Commit = func(context.Context) error {
					commits.Add(1)
					return nil
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ext := &cancellingExtractor{batch: batch, cancel: cancel}
			ldr := &mockLoader{}
			metrics := observability.NewMetricsForTesting()
			p := pipeline.New(ext, tt.transformer(), ldr, slog.Default(), metrics)

			require.NoError(t, p.Run(ctx))

			assert.Zero(t, ldr.count())
			assert.Zero(t, commits.Load())
			assert.Error(t, p.CheckReadiness(context.Background()))
		})
	}
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("kafka unavailable")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), observability.NewMetricsForTesting(),
		pipeline.WithMaxBackoff(50*time.Millisecond))

	start := time.Now()
	runFor(t, p, 150*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLoaders(t *testing.T) {
	first, second := &mockLoader{}, &mockLoader{}
	events := []domain.OutputEvent{{Key: []byte("a")}}

	require.NoError(t, pipeline.Loaders{first, second}.LoadBatch(context.Background(), events))
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())

	failing := &mockLoader{err: errors.New("disk full")}
	last := &mockLoader{}
	err := pipeline.Loaders{failing, last}.LoadBatch(context.Background(), events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, last.count())
}
