// Package store provides the durable local document store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/liftsync/liftlog/internal/errors"
)

// sqliteStore persists documents in a single SQLite table keyed by
// (collection, id).
type sqliteStore struct {
	db *sql.DB
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL CHECK(length(collection) > 0),
	id TEXT NOT NULL CHECK(length(id) > 0),
	payload TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// OpenSQLite opens the embedded database with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - A single writer connection (SQLite does not support more)
func OpenSQLite(dataDir string) (Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "liftlog.db")

	// Pure Go driver, no CGO
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Put upserts a document by id.
func (s *sqliteStore) Put(ctx context.Context, collection, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode document", err)
	}

	query := `
	INSERT INTO documents (collection, id, payload, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, string(payload), time.Now().Unix()); err != nil {
		return mapSQLiteError("put failed", err)
	}
	return nil
}

// Get loads a document by id.
func (s *sqliteStore) Get(ctx context.Context, collection, id string, out any) error {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM documents WHERE collection = ? AND id = ?",
		collection, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return apperrors.New(apperrors.ErrNotFound,
			fmt.Sprintf("document %s/%s not found", collection, id))
	}
	if err != nil {
		return mapSQLiteError("get failed", err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to decode document", err)
	}
	return nil
}

// GetAll returns all documents of a collection, unordered.
func (s *sqliteStore) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, mapSQLiteError("getAll failed", err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, mapSQLiteError("getAll scan failed", err)
		}
		docs = append(docs, json.RawMessage(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("getAll rows failed", err)
	}
	return docs, nil
}

// Delete removes a document. Absent ids are not an error.
func (s *sqliteStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?", collection, id); err != nil {
		return mapSQLiteError("delete failed", err)
	}
	return nil
}

// Durable reports true: SQLite documents survive restarts.
func (s *sqliteStore) Durable() bool {
	return true
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// mapSQLiteError converts driver errors into the store error
// taxonomy. A full database or disk surfaces as QUOTA_EXCEEDED; every
// other backend fault is STORAGE_UNAVAILABLE.
func mapSQLiteError(message string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "database or disk is full") || strings.Contains(msg, "SQLITE_FULL") {
		return apperrors.Wrap(apperrors.ErrQuotaExceeded, message, err)
	}
	return apperrors.Wrap(apperrors.ErrStorageUnavailable, message, err)
}
