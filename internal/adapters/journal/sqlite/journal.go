// Package sqlite keeps the ring history in a SQLite database opened in WAL
// mode, so a running node and a `history` command can share the file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"

	_ "modernc.org/sqlite"
)

const journalDirMode = 0o700

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	busy   busyPolicy
}

var _ ports.Journal = (*Journal)(nil)

// Open creates the database file and its parent directory when missing.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), journalDirMode); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	j := &Journal{db: db, logger: logger, busy: defaultBusyPolicy}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ring_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event      TEXT NOT NULL,
		request_id TEXT NOT NULL,
		user       TEXT NOT NULL,
		chime_id   TEXT NOT NULL,
		peer       TEXT,
		mode       TEXT,
		response   TEXT,
		detail     TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ring_events_request ON ring_events(request_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}

	err := j.withBusyRetry(ctx, "append", func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO ring_events (event, request_id, user, chime_id, peer, mode, response, detail, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(entry.Event), entry.RequestID, entry.User, entry.ChimeID,
			entry.Peer, entry.Mode, string(entry.Response), entry.Detail,
			at.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	j.logger.Debug("journal entry appended", "event", entry.Event, "request_id", entry.RequestID)
	return nil
}

// List returns the newest entries first. A limit of zero or less returns
// everything.
func (j *Journal) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	var entries []domain.JournalEntry
	err := j.withBusyRetry(ctx, "list", func(ctx context.Context) error {
		var err error
		entries, err = j.query(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (j *Journal) query(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, event, request_id, user, chime_id, peer, mode, response, detail, created_at
		 FROM ring_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (domain.JournalEntry, error) {
	var entry domain.JournalEntry
	var event, response, createdAt string
	var peer, mode, detail sql.NullString
	if err := rows.Scan(&entry.ID, &event, &entry.RequestID, &entry.User, &entry.ChimeID,
		&peer, &mode, &response, &detail, &createdAt); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("parse journal timestamp %q: %w", createdAt, err)
	}

	entry.Event = domain.JournalEvent(event)
	entry.Response = domain.ResponseKind(response)
	entry.Peer = peer.String
	entry.Mode = mode.String
	entry.Detail = detail.String
	entry.At = at

	return entry, nil
}
