// Package audit keeps a SQLite-backed log of answered queries for
// diagnostics: what was asked, what came back, with which model and
// how confidently. It is always best-effort; callers never fail a
// query because the audit write failed.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS query_log (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    confidence REAL NOT NULL,
    model TEXT NOT NULL,
    cases_cited INTEGER NOT NULL,
    latency_ms INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);
`

// Entry is one logged query.
type Entry struct {
	ID         string  `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
	CasesCited int     `json:"cases_cited"`
	LatencyMS  int64   `json:"latency_ms"`
	CreatedAt  string  `json:"created_at"`
}

// Log wraps the audit database.
type Log struct {
	db *sql.DB
}

// Open creates or opens the audit log at path.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record inserts an entry. A missing ID gets a fresh UUID, a missing
// timestamp the current time.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO query_log (id, question, answer, confidence, model, cases_cited, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Question, e.Answer, e.Confidence, e.Model, e.CasesCited, e.LatencyMS, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, question, answer, confidence, model, cases_cited, latency_ms, created_at
		FROM query_log
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Confidence, &e.Model,
			&e.CasesCited, &e.LatencyMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
