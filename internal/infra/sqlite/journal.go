// Package sqlite stores the dispatch journal in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"homechat/internal/domain"
)

const DefaultRecentLimit = 50

var schema = []string{
	`CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		entity_id TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		result TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_journal_at ON journal(at DESC, id DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_journal_session ON journal(session_id, at DESC, id DESC);`,
}

type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" to one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	j, err := NewJournal(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// NewJournal wraps an open database and makes sure the schema exists.
func NewJournal(db *sql.DB) (*Journal, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating journal schema: %w", err)
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, e domain.JournalEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO journal(at, session_id, source, entity_id, mode, result) VALUES(?, ?, ?, ?, ?, ?)",
		e.At.UnixMilli(),
		e.SessionID,
		string(e.Source),
		e.EntityID,
		e.Mode,
		e.Result,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries of one session, newest first. An empty
// sessionID matches every session.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := "SELECT id, at, session_id, source, entity_id, mode, result FROM journal"
	args := make([]any, 0, 2)
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e      domain.JournalEntry
			at     int64
			source string
		)
		if err := rows.Scan(&e.ID, &at, &e.SessionID, &source, &e.EntityID, &e.Mode, &e.Result); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Source = domain.JournalSource(source)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
