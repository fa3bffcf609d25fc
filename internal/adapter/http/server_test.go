package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/JordanRousseau/capital-problem/internal/adapter/http"
	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	reports   map[string]domain.ComparisonReport
	listErr   error
	lastLimit int
}

func (m *mockReports) Get(_ context.Context, id string) (domain.ComparisonReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return domain.ComparisonReport{}, fmt.Errorf("%w: %q", domain.ErrReportNotFound, id)
	}
	return r, nil
}

func (m *mockReports) List(_ context.Context, limit int) ([]domain.ReportSummary, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.ReportSummary, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r.Summary())
	}
	return out, nil
}

func newReports() *mockReports {
	return &mockReports{reports: map[string]domain.ComparisonReport{
		"cmp-1": {
			ID:          "cmp-1",
			Target:      "capital",
			Metric:      domain.MetricDTW,
			Ranking:     []domain.RankedCandidate{{Rank: 1, Name: "inland", Score: 3}},
			BestMatch:   "inland",
			GeneratedAt: time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func newTestServer(readyErr error, reports httpadapter.ReportStore) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, reports, slog.Default())
}

func serve(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzFailsWhenNotReady(t *testing.T) {
	rec := serve(newTestServer(errors.New("not ready yet"), nil), "/readyz")

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReportsRoutesAbsentWithoutStore(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/reports")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListReports(t *testing.T) {
	reports := newReports()
	rec := serve(newTestServer(nil, reports), "/reports?limit=5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, reports.lastLimit)

	var body []domain.ReportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "cmp-1", body[0].ID)
	assert.Equal(t, "inland", body[0].BestMatch)
	assert.Equal(t, 1, body[0].Candidates)
}

func TestListReportsRejectsBadLimit(t *testing.T) {
	for _, limit := range []string{"abc", "0", "-3"} {
		t.Run(limit, func(t *testing.T) {
			rec := serve(newTestServer(nil, newReports()), "/reports?limit="+limit)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListReportsStoreError(t *testing.T) {
	reports := newReports()
	reports.listErr = errors.New("disk full")

	rec := serve(newTestServer(nil, reports), "/reports")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestGetReport(t *testing.T) {
	rec := serve(newTestServer(nil, newReports()), "/reports/cmp-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.ComparisonReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "capital", body.Target)
	assert.Equal(t, "inland", body.BestMatch)
}

func TestGetReportNotFound(t *testing.T) {
	rec := serve(newTestServer(nil, newReports()), "/reports/missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "report not found")
}
