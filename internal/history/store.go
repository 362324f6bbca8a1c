// Package history persists wake attempts in SQLite for later querying.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/radio-control/radiowake/internal/audit"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/wake"

	_ "modernc.org/sqlite"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// MaxLimit is the largest page List returns.
const MaxLimit = 1000

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

// Record is a stored wake attempt.
type Record struct {
	ID           string    `json:"id"`
	RadioID      string    `json:"radioId"`
	Actor        string    `json:"actor"`
	Started      time.Time `json:"startedAt"`
	DurationMs   int64     `json:"durationMs"`
	TimeoutMs    int64     `json:"timeoutMs"`
	Result       string    `json:"result"`
	Code         string    `json:"code"`
	ActionIssued bool      `json:"actionIssued"`
	Shortcut     bool      `json:"shortcut"`
	Extensions   int       `json:"extensions"`
	Error        string    `json:"error,omitempty"`
}

// Query selects records for List. An empty RadioID matches every radio.
type Query struct {
	RadioID string
	Limit   int
	Since   time.Time
}

// Store manages the attempts table.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway store.
func Open(path string, log *logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NopLogger()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db, log: log.WithComponent("history")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wake_attempts (
		id            TEXT PRIMARY KEY,
		radio_id      TEXT NOT NULL,
		actor         TEXT NOT NULL,
		started_at    TEXT NOT NULL,
		duration_ms   INTEGER NOT NULL,
		timeout_ms    INTEGER NOT NULL,
		result        TEXT NOT NULL,
		code          TEXT NOT NULL,
		action_issued INTEGER NOT NULL DEFAULT 0,
		shortcut      INTEGER NOT NULL DEFAULT 0,
		extensions    INTEGER NOT NULL DEFAULT 0,
		error         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_wake_attempts_radio ON wake_attempts(radio_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_wake_attempts_started ON wake_attempts(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordWake implements wake.Recorder. Failures are logged, not returned.
func (s *Store) RecordWake(ctx context.Context, a wake.Attempt) {
	if err := s.Insert(ctx, FromAttempt(ctx, a)); err != nil {
		s.log.WithRadio(a.RadioID).Error("failed to store wake attempt", "attempt_id", a.ID, "error", err)
	}
}

// FromAttempt converts a completed attempt into a Record.
func FromAttempt(ctx context.Context, a wake.Attempt) Record {
	r := Record{
		ID:           a.ID,
		RadioID:      a.RadioID,
		Actor:        audit.ActorFromContext(ctx),
		Started:      a.Started.UTC(),
		DurationMs:   a.Duration.Milliseconds(),
		TimeoutMs:    a.Timeout.Milliseconds(),
		Result:       a.Result.String(),
		Code:         audit.Code(a),
		ActionIssued: a.ActionIssued,
		Shortcut:     a.Shortcut,
		Extensions:   a.Extensions,
	}
	if a.Err != nil {
		r.Error = a.Err.Error()
		if a.Result == 0 {
			r.Result = "error"
		}
	}
	return r
}

// Insert stores r, retrying transient lock contention.
func (s *Store) Insert(ctx context.Context, r Record) error {
	if r.ID == "" {
		return errors.New("record id is required")
	}
	op := func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO wake_attempts
			 (id, radio_id, actor, started_at, duration_ms, timeout_ms, result, code,
			  action_issued, shortcut, extensions, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.RadioID, r.Actor, r.Started.UTC().Format(time.RFC3339Nano),
			r.DurationMs, r.TimeoutMs, r.Result, r.Code,
			r.ActionIssued, r.Shortcut, r.Extensions, nullString(r.Error),
		)
		return classify(err)
	}
	return retryOnContention(ctx, op)
}

// List returns the newest records matching q.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var (
		where []string
		args  []any
	)
	if q.RadioID != "" {
		where = append(where, "radio_id = ?")
		args = append(args, q.RadioID)
	}
	if !q.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}

	query := `SELECT id, radio_id, actor, started_at, duration_ms, timeout_ms, result, code,
		action_issued, shortcut, extensions, error FROM wake_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r       Record
			started string
			errText sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RadioID, &r.Actor, &started, &r.DurationMs, &r.TimeoutMs,
			&r.Result, &r.Code, &r.ActionIssued, &r.Shortcut, &r.Extensions, &errText); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.Error = errText.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes records started before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	op := func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM wake_attempts WHERE started_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return classify(err)
		}
		n, err = res.RowsAffected()
		return err
	}
	if err := retryOnContention(ctx, op); err != nil {
		return 0, err
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ wake.Recorder = (*Store)(nil)
