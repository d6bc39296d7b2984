package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"GamePartner/pkg/types"
)

// JournalFileName is the database file created in the scratch directory.
const JournalFileName = "journal.db"

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Journal records every analysis attempt of the session in SQLite.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal at path. Pass ":memory:" for an
// in-memory database.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) createTables() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		trigger_kind TEXT NOT NULL,
		user_text TEXT,
		reply TEXT,
		status TEXT NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating analyses table: %w", err)
	}
	return nil
}

// Record stores one analysis attempt.
func (j *Journal) Record(ctx context.Context, rec types.AnalysisRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO analyses (id, trigger_kind, user_text, reply, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Trigger, rec.UserText, rec.Reply, rec.Status, rec.Error,
		rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording analysis %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]types.AnalysisRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, trigger_kind, user_text, reply, status, error, started_at, finished_at
		 FROM analyses ORDER BY started_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var records []types.AnalysisRecord
	for rows.Next() {
		var rec types.AnalysisRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.Trigger, &rec.UserText, &rec.Reply, &rec.Status, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		rec.StartedAt, _ = time.Parse(timeLayout, started)
		rec.FinishedAt, _ = time.Parse(timeLayout, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
