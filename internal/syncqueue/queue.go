// Package syncqueue manages the persisted list of mutations not yet
// confirmed by the remote service. The authoritative queue state is
// always what is in the local store; the in-memory map is a cache
// rehydrated by Restore at startup.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/liftsync/liftlog/internal/errors"
	"github.com/liftsync/liftlog/internal/logging"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/store"
)

// DefaultMaxRetries is the retry ceiling applied to items enqueued
// without one.
const DefaultMaxRetries = 3

// Queue is the persisted sync queue.
type Queue struct {
	mu      sync.RWMutex
	items   map[string]*models.SyncQueueItem
	store   store.Store
	maxSize int
}

// NewQueue creates a Queue persisting into the store's syncQueue
// collection. maxSize bounds the number of pending items; zero or
// negative means unbounded.
func NewQueue(st store.Store, maxSize int) *Queue {
	return &Queue{
		items:   make(map[string]*models.SyncQueueItem),
		store:   st,
		maxSize: maxSize,
	}
}

// Restore rehydrates the in-memory cache from the local store. Called
// once at startup, before any drain.
func (q *Queue) Restore(ctx context.Context) error {
	docs, err := q.store.GetAll(ctx, models.CollectionSyncQueue)
	if err != nil {
		return fmt.Errorf("failed to restore sync queue: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make(map[string]*models.SyncQueueItem, len(docs))
	for _, doc := range docs {
		var item models.SyncQueueItem
		if err := json.Unmarshal(doc, &item); err != nil {
			logging.Warn("skipping undecodable sync queue entry",
				logging.Fields{"error": err.Error()})
			continue
		}
		q.items[item.ID] = &item
	}

	logging.Info("sync queue restored", logging.Fields{"items": len(q.items)})
	return nil
}

// Enqueue appends an item, stamping EnqueuedAt and applying the
// default retry ceiling. The item is persisted before the cache is
// updated so that a reload never observes a cached item missing from
// disk.
func (q *Queue) Enqueue(ctx context.Context, item *models.SyncQueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.items[item.ID]; !exists && q.maxSize > 0 && len(q.items) >= q.maxSize {
		return apperrors.New(apperrors.ErrQuotaExceeded,
			fmt.Sprintf("sync queue is full (max size: %d)", q.maxSize))
	}

	if item.EnqueuedAt == 0 {
		item.EnqueuedAt = time.Now().Unix()
	}
	if item.MaxRetries == 0 {
		item.MaxRetries = DefaultMaxRetries
	}

	if err := q.store.Put(ctx, models.CollectionSyncQueue, item.ID, item); err != nil {
		return fmt.Errorf("failed to persist queue item %s: %w", item.ID, err)
	}
	q.items[item.ID] = item.Clone()

	logging.Debug("enqueued sync operation",
		logging.Fields{"id": item.ID, "operation": item.OperationType})
	return nil
}

// Dequeue removes an item by id from disk and cache. Removing an
// absent id is a no-op.
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Delete(ctx, models.CollectionSyncQueue, id); err != nil {
		return fmt.Errorf("failed to remove queue item %s: %w", id, err)
	}
	delete(q.items, id)
	return nil
}

// Get returns a copy of the item with the given id.
func (q *Queue) Get(id string) (*models.SyncQueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// Drain returns copies of all queued items sorted ascending by
// priority, then by enqueue time. Lower priority values drain first.
func (q *Queue) Drain() []*models.SyncQueueItem {
	q.mu.RLock()
	items := make([]*models.SyncQueueItem, 0, len(q.items))
	for _, item := range q.items {
		items = append(items, item.Clone())
	}
	q.mu.RUnlock()

	sort.Slice(items, func(a, b int) bool {
		if items[a].Priority != items[b].Priority {
			return items[a].Priority < items[b].Priority
		}
		if items[a].EnqueuedAt != items[b].EnqueuedAt {
			return items[a].EnqueuedAt < items[b].EnqueuedAt
		}
		return items[a].ID < items[b].ID
	})
	return items
}

// MarkFailed increments the retry counter, records the cause, and
// persists the updated item. Returns a copy of the updated item.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) (*models.SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound,
			fmt.Sprintf("queue item %s not found", id))
	}

	item.RetryCount++
	item.LastError = cause.Error()

	if err := q.store.Put(ctx, models.CollectionSyncQueue, item.ID, item); err != nil {
		return nil, fmt.Errorf("failed to persist queue item %s: %w", id, err)
	}
	return item.Clone(), nil
}

// Rewrite replaces the item stored under oldID with item (persisted
// under item.ID). Used when the remote service assigns a new id to a
// locally-created record and queued references must follow.
func (q *Queue) Rewrite(ctx context.Context, oldID string, item *models.SyncQueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Put(ctx, models.CollectionSyncQueue, item.ID, item); err != nil {
		return fmt.Errorf("failed to persist queue item %s: %w", item.ID, err)
	}
	if oldID != item.ID {
		if err := q.store.Delete(ctx, models.CollectionSyncQueue, oldID); err != nil {
			return fmt.Errorf("failed to remove queue item %s: %w", oldID, err)
		}
		delete(q.items, oldID)
	}
	q.items[item.ID] = item.Clone()
	return nil
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Flush re-persists every cached item. Best-effort: wired to shutdown
// so items touched during an in-flight drain reach disk; individual
// failures are logged, not returned.
func (q *Queue) Flush(ctx context.Context) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, item := range q.items {
		if err := q.store.Put(ctx, models.CollectionSyncQueue, item.ID, item); err != nil {
			logging.Error("failed to flush queue item", err,
				logging.Fields{"id": item.ID})
		}
	}
}
