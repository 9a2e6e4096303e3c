// Package store provides the durable local document store.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	apperrors "github.com/liftsync/liftlog/internal/errors"
)

// memoryStore is the session-lifetime fallback used when the embedded
// database is unavailable. Documents are lost on process exit.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // collection -> id -> payload
}

// NewMemory creates an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{
		data: make(map[string]map[string][]byte),
	}
}

// Put upserts a document by id.
func (s *memoryStore) Put(ctx context.Context, collection, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode document", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.data[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.data[collection] = coll
	}
	coll[id] = payload
	return nil
}

// Get loads a document by id.
func (s *memoryStore) Get(ctx context.Context, collection, id string, out any) error {
	s.mu.RLock()
	payload, ok := s.data[collection][id]
	s.mu.RUnlock()

	if !ok {
		return apperrors.New(apperrors.ErrNotFound,
			fmt.Sprintf("document %s/%s not found", collection, id))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to decode document", err)
	}
	return nil
}

// GetAll returns all documents of a collection, unordered.
func (s *memoryStore) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]json.RawMessage, 0, len(s.data[collection]))
	for _, payload := range s.data[collection] {
		docs = append(docs, json.RawMessage(append([]byte(nil), payload...)))
	}
	return docs, nil
}

// Delete removes a document. Absent ids are not an error.
func (s *memoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coll, ok := s.data[collection]; ok {
		delete(coll, id)
	}
	return nil
}

// Durable reports false: memory documents do not survive restarts.
func (s *memoryStore) Durable() bool {
	return false
}

// Close is a no-op for the memory store.
func (s *memoryStore) Close() error {
	return nil
}
