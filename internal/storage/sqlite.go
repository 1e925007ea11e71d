package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsdigest/internal/model"
	"newsdigest/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateRun inserts a run in the started state.
func (s *SQLite) CreateRun(ctx context.Context, run *model.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStarted
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_date, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Date, string(run.Status), run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *SQLite) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, items_fetched = ?, items_unique = ?, stories = ?, actions = ?,
		        output_file = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.ItemsFetched, run.ItemsUnique, run.Stories, run.Actions,
		run.OutputFile, run.Error, run.FinishedAt.UTC().Format(timeLayout), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun returns a single run by its ID.
func (s *SQLite) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_date, status, items_fetched, items_unique, stories, actions, output_file, error, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_date, status, items_fetched, items_unique, stories, actions, output_file, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// SaveSourceReports records per-source outcomes for a run in source order.
func (s *SQLite) SaveSourceReports(ctx context.Context, runID string, reports []model.SourceReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, r := range reports {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_reports (run_id, position, source, status, items, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i, r.Source, string(r.Status), r.Items, r.Error, r.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert source report: %w", err)
		}
	}
	return tx.Commit()
}

// ListSourceReports returns the source outcomes recorded for a run.
func (s *SQLite) ListSourceReports(ctx context.Context, runID string) ([]model.SourceReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, status, items, error, duration_ms FROM source_reports WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query source reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []model.SourceReport
	for rows.Next() {
		var r model.SourceReport
		var status string
		var durationMS int64
		if err := rows.Scan(&r.Source, &status, &r.Items, &r.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scan source report: %w", err)
		}
		r.Status = model.SourceStatus(status)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// SaveStories records the ranked stories of a run.
func (s *SQLite) SaveStories(ctx context.Context, runID string, stories []model.ScoredStory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, st := range stories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO stories (run_id, rank, url, title, source, category, relevance_score, story_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, st.URL, st.Title, st.Source, string(st.Category), st.RelevanceScore, st.Date,
		); err != nil {
			return fmt.Errorf("insert story: %w", err)
		}
	}
	return tx.Commit()
}

// ListStories returns the stories of a run in rank order.
func (s *SQLite) ListStories(ctx context.Context, runID string) ([]model.ScoredStory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, source, category, relevance_score, story_date FROM stories WHERE run_id = ? ORDER BY rank`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []model.ScoredStory
	for rows.Next() {
		var st model.ScoredStory
		var category string
		if err := rows.Scan(&st.URL, &st.Title, &st.Source, &category, &st.RelevanceScore, &st.Date); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		st.Category = model.Category(category)
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

// PreviouslySeen reports which urls were already part of another run's stories.
func (s *SQLite) PreviouslySeen(ctx context.Context, runID string, urls []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return seen, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, 0, len(urls)+1)
	args = append(args, runID)
	for _, u := range urls {
		args = append(args, u)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT url FROM stories WHERE run_id <> ? AND url IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query seen stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan seen story: %w", err)
		}
		seen[u] = true
	}
	return seen, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status, started string
	var finished sql.NullString
	err := row.Scan(&r.ID, &r.Date, &status, &r.ItemsFetched, &r.ItemsUnique, &r.Stories, &r.Actions,
		&r.OutputFile, &r.Error, &started, &finished)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Status = model.RunStatus(status)
	r.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		t, _ := time.Parse(timeLayout, finished.String)
		r.FinishedAt = &t
	}
	return &r, nil
}
