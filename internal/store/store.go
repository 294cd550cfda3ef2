// Package store persists publish status, QIDs and the publish attempt log in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/wikiclaim/internal/model"
)

var (
	// ErrNotFound means no status row exists for the business and target
	ErrNotFound = errors.New("business not found")
	// ErrPublishInProgress means another publish holds the business
	ErrPublishInProgress = errors.New("publish already in progress")
	// ErrAlreadyPublished means the business already has a QID on the target
	ErrAlreadyPublished = errors.New("business already published")
)

// Store handles SQLite persistence. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Record is the publish status of one business on one target
type Record struct {
	BusinessID string
	Name       string
	Target     model.Target
	Status     model.PublishStatus
	QID        string
	LastError  string
	Attempts   int
	UpdatedAt  time.Time
}

// Attempt is one call to the publish API
type Attempt struct {
	ID         string
	BusinessID string
	Target     model.Target
	Number     int // 1-based within one publish run
	Outcome    string
	ErrorKind  string
	Error      string
	QID        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Open creates a Store at dbPath, creating tables if they don't exist.
// ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps an in-memory database visible to every query
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		business_id TEXT NOT NULL,
		target TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'unpublished',
		qid TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (business_id, target)
	);

	CREATE TABLE IF NOT EXISTS publish_attempts (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		target TEXT NOT NULL,
		number INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		qid TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
	CREATE INDEX IF NOT EXISTS idx_attempts_business ON publish_attempts(business_id, target, started_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// BeginPublish moves a business to publishing if it is unpublished or errored.
// This is the per-business lock: it fails with ErrPublishInProgress or
// ErrAlreadyPublished when another run holds or finished the business.
func (s *Store) BeginPublish(ctx context.Context, businessID, name string, target model.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO businesses (business_id, target, name, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, businessID, string(target), name, string(model.StatusUnpublished), now); err != nil {
		return fmt.Errorf("insert business: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE businesses
		SET status = ?, name = CASE WHEN ? = '' THEN name ELSE ? END, last_error = '', updated_at = ?
		WHERE business_id = ? AND target = ? AND status IN (?, ?)
	`, string(model.StatusPublishing), name, name, now, businessID, string(target),
		string(model.StatusUnpublished), string(model.StatusError))
	if err != nil {
		return fmt.Errorf("claim business: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim business: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var status string
	if err := s.db.QueryRowContext(ctx,
		"SELECT status FROM businesses WHERE business_id = ? AND target = ?",
		businessID, string(target)).Scan(&status); err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if model.PublishStatus(status) == model.StatusPublished {
		return ErrAlreadyPublished
	}
	return ErrPublishInProgress
}

// MarkPublished records the QID and releases the lock
func (s *Store) MarkPublished(ctx context.Context, businessID string, target model.Target, qid string, attempts int) error {
	return s.finish(ctx, businessID, target, model.StatusPublished, qid, "", attempts)
}

// MarkError records the failure and releases the lock so the business can be retried
func (s *Store) MarkError(ctx context.Context, businessID string, target model.Target, message string, attempts int) error {
	return s.finish(ctx, businessID, target, model.StatusError, "", message, attempts)
}

func (s *Store) finish(ctx context.Context, businessID string, target model.Target, status model.PublishStatus, qid, message string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE businesses
		SET status = ?, qid = ?, last_error = ?, attempts = attempts + ?, updated_at = ?
		WHERE business_id = ? AND target = ? AND status = ?
	`, string(status), qid, message, attempts, s.now().UTC(), businessID, string(target), string(model.StatusPublishing))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set %s for %s on %s: %w", status, businessID, target, ErrNotFound)
	}
	return nil
}

// ReleaseStale moves publishing rows not updated since before to error.
// It recovers businesses left locked by an interrupted run.
func (s *Store) ReleaseStale(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE businesses
		SET status = ?, last_error = 'publish interrupted', updated_at = ?
		WHERE status = ? AND updated_at < ?
	`, string(model.StatusError), s.now().UTC(), string(model.StatusPublishing), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("release stale: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release stale: %w", err)
	}
	return int(affected), nil
}

// Get returns the status of a business on a target
func (s *Store) Get(ctx context.Context, businessID string, target model.Target) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT business_id, target, name, status, qid, last_error, attempts, updated_at
		FROM businesses WHERE business_id = ? AND target = ?
	`, businessID, string(target))
	if err != nil {
		return nil, fmt.Errorf("query business: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

// List returns every business on a target, most recently updated first.
// An empty target lists all targets.
func (s *Store) List(ctx context.Context, target model.Target) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT business_id, target, name, status, qid, last_error, attempts, updated_at
		FROM businesses
	`
	var args []any
	if target != "" {
		query += " WHERE target = ?"
		args = append(args, string(target))
	}
	query += " ORDER BY updated_at DESC, business_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var target, status string
		if err := rows.Scan(&r.BusinessID, &target, &r.Name, &status, &r.QID, &r.LastError, &r.Attempts, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		r.Target = model.Target(target)
		r.Status = model.PublishStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return records, nil
}

// RecordAttempt appends to the attempt log, assigning an ID if a.ID is empty
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = s.now()
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO publish_attempts (id, business_id, target, number, outcome, error_kind, error, qid, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.BusinessID, string(a.Target), a.Number, a.Outcome, a.ErrorKind, a.Error, a.QID,
		a.StartedAt.UTC(), a.FinishedAt.UTC()); err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return a.ID, nil
}

// Attempts returns the attempt log of a business on a target, oldest first
func (s *Store) Attempts(ctx context.Context, businessID string, target model.Target) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, target, number, outcome, error_kind, error, qid, started_at, finished_at
		FROM publish_attempts
		WHERE business_id = ? AND target = ?
		ORDER BY started_at, number
	`, businessID, string(target))
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var target string
		if err := rows.Scan(&a.ID, &a.BusinessID, &target, &a.Number, &a.Outcome, &a.ErrorKind, &a.Error, &a.QID, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Target = model.Target(target)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}
