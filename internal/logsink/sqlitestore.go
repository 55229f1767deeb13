package logsink

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// Durable layout of the log document.
const (
	LogsKey       = "app_logs"
	FormatVersion = "1.0"
	AppName       = "floroexpress"
)

// Document is the single keyed value holding the persisted log.
type Document struct {
	FormatVersion string  `json:"format_version"`
	AppName       string  `json:"app_name"`
	Logs          []Entry `json:"logs"`
}

// SQLiteStore persists the log as one JSON document in a key-value table.
type SQLiteStore struct {
	db  *sql.DB
	cap int
}

// NewSQLiteStore opens (or creates) the store at dsn.
func NewSQLiteStore(dsn string, cap int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("logsink: open: %w", err)
	}
	// One connection keeps read-modify-write cycles serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("logsink: set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("logsink: create schema: %w", err)
	}

	return &SQLiteStore{db: db, cap: cap}, nil
}

// Append adds entry to the document and evicts the oldest beyond the cap.
func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("logsink: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := readDocument(ctx, tx)
	if err != nil {
		return err
	}
	doc.Logs = trim(append(doc.Logs, entry), s.cap)

	if err := writeDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("logsink: commit: %w", err)
	}
	return nil
}

// List returns the persisted entries, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	doc, err := readDocument(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return doc.Logs, nil
}

// Document returns the raw persisted document.
func (s *SQLiteStore) Document(ctx context.Context) (Document, error) {
	return readDocument(ctx, s.db)
}

// Clear removes the log document.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, LogsKey); err != nil {
		return fmt.Errorf("logsink: clear: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readDocument(ctx context.Context, q queryer) (Document, error) {
	doc := Document{FormatVersion: FormatVersion, AppName: AppName}

	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, LogsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return doc, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("logsink: read: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, fmt.Errorf("logsink: decode: %w", err)
	}
	return doc, nil
}

func writeDocument(ctx context.Context, tx *sql.Tx, doc Document) error {
	doc.FormatVersion = FormatVersion
	doc.AppName = AppName
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("logsink: encode: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		LogsKey,
		string(raw),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("logsink: write: %w", err)
	}
	return nil
}
