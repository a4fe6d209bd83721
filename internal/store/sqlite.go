package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, retry shared.RetryPolicy) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT UNIQUE,
		received_at INTEGER NOT NULL,
		worker_id TEXT NOT NULL,
		assignment_id TEXT NOT NULL,
		condition TEXT NOT NULL,
		started_at INTEGER,
		ended_at INTEGER,
		duration_ms INTEGER,
		exit_early INTEGER NOT NULL DEFAULT 0,
		num_trials INTEGER NOT NULL DEFAULT 0,
		uniqname TEXT,
		survey_code TEXT NOT NULL,
		payload_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_worker ON submissions(worker_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// SaveSubmission stores a submission, retrying on SQLITE_BUSY.
func (s *SQLiteStore) SaveSubmission(ctx context.Context, rec *domain.SubmissionRecord) (*domain.SubmissionRecord, bool, error) {
	payload, err := json.Marshal(rec.Submission)
	if err != nil {
		return nil, false, fmt.Errorf("encode submission: %w", err)
	}

	sub := rec.Submission
	var uniqname interface{}
	if sub.Uniqname != nil {
		uniqname = *sub.Uniqname
	}
	var endedAt interface{}
	if sub.EndedAt != 0 {
		endedAt = sub.EndedAt
	}

	query := `
	INSERT INTO submissions (
		session_id, received_at, worker_id, assignment_id, condition,
		started_at, ended_at, duration_ms, exit_early, num_trials,
		uniqname, survey_code, payload_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var id int64
	err = shared.Retry(ctx, s.retry, "save submission", shared.IsSQLiteConflictError, func() error {
		res, execErr := s.db.ExecContext(ctx, query,
			nullString(sub.SessionID), rec.ReceivedAt.UnixMilli(),
			sub.WorkerID, sub.AssignmentID, string(sub.Condition),
			nullInt(sub.StartedAt), endedAt, nullInt(rec.DurationMs),
			sub.ExitEarly, len(sub.Trials),
			uniqname, rec.SurveyCode, string(payload),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		if shared.IsSQLiteUniqueError(err) && sub.SessionID != "" {
			existing, getErr := s.GetSubmissionBySession(ctx, sub.SessionID)
			if getErr != nil {
				return nil, false, getErr
			}
			if existing != nil {
				slog.Info("Duplicate submission ignored", "session_id", sub.SessionID, "survey_code", existing.SurveyCode)
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("insert submission: %w", err)
	}

	saved := *rec
	saved.ID = id
	return &saved, true, nil
}

const selectSubmission = `
	SELECT id, received_at, survey_code, duration_ms, payload_json
	FROM submissions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row scanner) (*domain.SubmissionRecord, error) {
	var rec domain.SubmissionRecord
	var receivedAt int64
	var duration sql.NullInt64
	var payload string

	if err := row.Scan(&rec.ID, &receivedAt, &rec.SurveyCode, &duration, &payload); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Submission); err != nil {
		return nil, fmt.Errorf("decode submission %d: %w", rec.ID, err)
	}
	rec.ReceivedAt = time.UnixMilli(receivedAt).UTC()
	if duration.Valid {
		d := duration.Int64
		rec.DurationMs = &d
	}
	return &rec, nil
}

// GetSubmissionBySession retrieves a submission by its session id.
func (s *SQLiteStore) GetSubmissionBySession(ctx context.Context, sessionID string) (*domain.SubmissionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectSubmission+` WHERE session_id = ?`, sessionID)
	rec, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan submission row: %w", err)
	}
	return rec, nil
}

// ListSubmissions returns every submission in arrival order.
func (s *SQLiteStore) ListSubmissions(ctx context.Context) ([]*domain.SubmissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectSubmission+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close submission rows", "error", closeErr)
		}
	}()

	var out []*domain.SubmissionRecord
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}
