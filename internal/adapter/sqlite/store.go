// Package sqlite persists comparison reports in a local SQLite database so they
// can be listed and fetched after they have been published.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/observability"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store keeps comparison reports keyed by request ID.
// It implements pipeline.BatchLoader.
type Store struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// Open creates or opens the database at path and applies migrations.
// metrics may be nil.
func Open(path string, metrics *observability.Metrics) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, metrics: metrics}
	if err := s.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores one report, replacing any earlier report with the same ID.
func (s *Store) Save(ctx context.Context, report domain.ComparisonReport) error {
	return s.saveAll(ctx, []domain.ComparisonReport{report})
}

// LoadBatch decodes serialized reports and stores them in one transaction.
func (s *Store) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	reports := make([]domain.ComparisonReport, len(events))
	for i, ev := range events {
		if err := json.Unmarshal(ev.Value, &reports[i]); err != nil {
			return fmt.Errorf("decode report %q: %w", ev.Key, err)
		}
	}
	return s.saveAll(ctx, reports)
}

func (s *Store) saveAll(ctx context.Context, reports []domain.ComparisonReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range reports {
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode report %q: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reports (id, target, metric, best_match, candidates, generated_at, body)
             VALUES (?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 target = excluded.target,
                 metric = excluded.metric,
                 best_match = excluded.best_match,
                 candidates = excluded.candidates,
                 generated_at = excluded.generated_at,
                 body = excluded.body`,
			r.ID,
			r.Target,
			string(r.Metric),
			nullableString(r.BestMatch),
			len(r.Ranking),
			r.GeneratedAt.UnixNano(),
			string(body),
		)
		if err != nil {
			return fmt.Errorf("insert report %q: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ReportsStored.Add(float64(len(reports)))
	}
	return nil
}

// Get returns the report with the given ID, or domain.ErrReportNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.ComparisonReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ComparisonReport{}, fmt.Errorf("%w: %q", domain.ErrReportNotFound, id)
	}
	if err != nil {
		return domain.ComparisonReport{}, fmt.Errorf("get report: %w", err)
	}
	var report domain.ComparisonReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return domain.ComparisonReport{}, fmt.Errorf("decode report %q: %w", id, err)
	}
	return report, nil
}

// List returns up to limit report summaries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.ReportSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target, metric, best_match, candidates, generated_at
         FROM reports ORDER BY generated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.ReportSummary, 0, limit)
	for rows.Next() {
		var (
			sum       domain.ReportSummary
			metric    string
			bestMatch sql.NullString
			generated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Target, &metric, &bestMatch, &sum.Candidates, &generated); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		sum.Metric = domain.Metric(metric)
		sum.BestMatch = bestMatch.String
		sum.GeneratedAt = time.Unix(0, generated).UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return summaries, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
