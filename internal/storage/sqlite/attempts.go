// Package sqlite keeps an audit log of extraction attempts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"tradietalk-voice-service/internal/observability/logging"
	"tradietalk-voice-service/internal/observability/metrics"
	"tradietalk-voice-service/internal/service/extraction"
)

// AttemptStorage handles storage of extraction attempt records
type AttemptStorage struct {
	db      *sql.DB
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Open opens (or creates) the audit database at path. Use ":memory:" in tests.
func Open(path string) (*AttemptStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	storage := NewAttemptStorage(db)
	if err := storage.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// NewAttemptStorage wraps an open database. Call Open to also create the schema.
func NewAttemptStorage(db *sql.DB) *AttemptStorage {
	return &AttemptStorage{
		db:      db,
		logger:  logging.WithComponent("sqlite-attempts"),
		metrics: metrics.DefaultMetrics,
	}
}

// initDB initializes the database tables
func (s *AttemptStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS extraction_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attempt_id TEXT NOT NULL,
			session_id TEXT,
			source TEXT NOT NULL,
			trade_hint TEXT,
			transcript TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT,
			job_title TEXT,
			duration_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create extraction_attempts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_attempts_attempt_id ON extraction_attempts(attempt_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON extraction_attempts(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_created_at ON extraction_attempts(created_at)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create attempt index: %w", err)
		}
	}

	return nil
}

// StoreAttempt stores an attempt record
func (s *AttemptStorage) StoreAttempt(ctx context.Context, record *AttemptRecord) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_attempts
		(attempt_id, session_id, source, trade_hint, transcript, outcome, error, job_title, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.AttemptID,
		record.SessionID,
		record.Source,
		record.TradeHint,
		record.Transcript,
		record.Outcome,
		record.Error,
		record.JobTitle,
		record.DurationMs,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetAttempt returns the record for an attempt ID, or sql.ErrNoRows.
func (s *AttemptStorage) GetAttempt(ctx context.Context, attemptID string) (*AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, session_id, source, trade_hint, transcript, outcome, error, job_title, duration_ms, created_at
		FROM extraction_attempts
		WHERE attempt_id = ?
		ORDER BY id DESC
		LIMIT 1`,
		attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt: %w", err)
	}
	defer rows.Close()

	records, err := s.scanAttemptRows(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

// GetRecentAttempts returns the newest attempts, optionally filtered by outcome.
func (s *AttemptStorage) GetRecentAttempts(ctx context.Context, outcome string, limit int) ([]*AttemptRecord, error) {
	query := `SELECT id, attempt_id, session_id, source, trade_hint, transcript, outcome, error, job_title, duration_ms, created_at
		FROM extraction_attempts`
	args := []any{}
	if outcome != "" {
		query += ` WHERE outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent attempts: %w", err)
	}
	defer rows.Close()

	return s.scanAttemptRows(rows)
}

// CountByOutcome returns the number of attempts per outcome kind.
func (s *AttemptStorage) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM extraction_attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attempt count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// OnExtraction implements extraction.Observer.
func (s *AttemptStorage) OnExtraction(ctx context.Context, o extraction.Outcome) {
	record := &AttemptRecord{
		AttemptID:  o.AttemptID,
		SessionID:  o.SessionID,
		Source:     o.Source,
		TradeHint:  string(o.Request.TradeHint),
		Transcript: o.Request.Transcript,
		Outcome:    o.Kind,
		DurationMs: o.Duration.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if o.Err != nil {
		record.Error = o.Err.Error()
	}
	if o.Result != nil {
		record.JobTitle = o.Result.JobTitle
	}

	_, err := s.StoreAttempt(context.WithoutCancel(ctx), record)
	s.metrics.RecordAuditWrite(err)
	if err != nil {
		s.logger.Error().Err(err).Str("attemptId", o.AttemptID).Msg("Failed to store extraction attempt")
	}
}

// Close closes the database.
func (s *AttemptStorage) Close() error {
	return s.db.Close()
}

func (s *AttemptStorage) scanAttemptRows(rows *sql.Rows) ([]*AttemptRecord, error) {
	var records []*AttemptRecord
	for rows.Next() {
		var (
			record                                  AttemptRecord
			sessionID, tradeHint, errText, jobTitle sql.NullString
			createdAt                               string
		)
		err := rows.Scan(
			&record.ID,
			&record.AttemptID,
			&sessionID,
			&record.Source,
			&tradeHint,
			&record.Transcript,
			&record.Outcome,
			&errText,
			&jobTitle,
			&record.DurationMs,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		record.SessionID = sessionID.String
		record.TradeHint = tradeHint.String
		record.Error = errText.String
		record.JobTitle = jobTitle.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			record.CreatedAt = t
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempt rows: %w", err)
	}
	return records, nil
}
