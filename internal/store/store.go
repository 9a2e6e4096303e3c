// Package store provides the durable local document store backing the
// offline sync engine. Records live in named collections and are
// persisted as JSON documents keyed by id.
//
// The primary backend is an embedded SQLite database. When the
// database cannot be opened, Open degrades to a process-lifetime
// in-memory store; the degradation is logged and visible to callers
// through Durable().
package store

import (
	"context"
	"encoding/json"

	"github.com/liftsync/liftlog/internal/logging"
)

// Store is the collection-scoped document store contract.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put upserts a document by id. Writes are whole-document, never
	// partial.
	Put(ctx context.Context, collection, id string, doc any) error

	// Get loads the document with the given id into out. Returns an
	// error with code NOT_FOUND when the id is absent.
	Get(ctx context.Context, collection, id string, out any) error

	// GetAll returns the raw documents of a collection, unordered.
	GetAll(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Delete removes a document. Deleting an absent id is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Durable reports whether documents survive a process restart.
	Durable() bool

	// Close releases the underlying backend.
	Close() error
}

// Open probes the embedded database and returns the durable store, or
// the in-memory fallback when the database is unavailable. The
// fallback is session-lifetime only; callers see the trade-off via
// Durable().
func Open(dataDir string) Store {
	s, err := OpenSQLite(dataDir)
	if err != nil {
		logging.Warn("local database unavailable, falling back to in-memory store",
			logging.Fields{"data_dir": dataDir, "error": err.Error()})
		return NewMemory()
	}
	return s
}
