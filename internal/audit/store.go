// Package audit records creation runs and the issues they created in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded creation run.
type Run struct {
	ID         string
	ProjectKey string
	Source     string // "create", "draft" or "a2a"
	Status     string
	Error      string
	Warnings   []string
	StartedAt  time.Time
	FinishedAt *time.Time
	IssueCount int
}

// Store is the audit database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the audit database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return &Store{db: conn, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// StartRun records a new running run and returns its id.
func (s *Store) StartRun(ctx context.Context, projectKey, source string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, project_key, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, projectKey, source, StatusRunning, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordIssue appends a created issue to a run.
func (s *Store) RecordIssue(ctx context.Context, runID string, issue models.CreatedIssue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO created_issues(run_id, seq, issue_key, url, issue_type, summary, epic_key, parent_key, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM created_issues WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?)`,
		runID, runID, issue.Key, issue.URL, issue.IssueType, issue.Summary, issue.EpicKey, issue.ParentKey, s.timestamp())
	if err != nil {
		return fmt.Errorf("insert created issue %s: %w", issue.Key, err)
	}
	return nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error, warnings []string) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, error=?, warnings=?, finished_at=? WHERE id=?`,
		status, msg, strings.Join(warnings, "\n"), s.timestamp(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.project_key, r.source, r.status, r.error, r.warnings, r.started_at, r.finished_at,
		       (SELECT COUNT(*) FROM created_issues c WHERE c.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var warnings, started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectKey, &r.Source, &r.Status, &r.Error, &warnings, &started, &finished, &r.IssueCount); err != nil {
			return nil, err
		}
		if warnings != "" {
			r.Warnings = strings.Split(warnings, "\n")
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Issues returns the issues a run created, in creation order.
func (s *Store) Issues(ctx context.Context, runID string) ([]models.CreatedIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_key, url, issue_type, summary, epic_key, parent_key
		FROM created_issues WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CreatedIssue
	for rows.Next() {
		var ci models.CreatedIssue
		if err := rows.Scan(&ci.Key, &ci.URL, &ci.IssueType, &ci.Summary, &ci.EpicKey, &ci.ParentKey); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
