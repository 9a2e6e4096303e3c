// Package replay drains the sync queue against the remote service
// when connectivity allows. A drain pass works on a snapshot of the
// queue, dispatches items in small concurrent batches, and folds every
// per-item failure into that item's retry bookkeeping; a pass never
// fails as a whole and never propagates item errors to its caller.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/liftsync/liftlog/internal/connectivity"
	apperrors "github.com/liftsync/liftlog/internal/errors"
	"github.com/liftsync/liftlog/internal/events"
	"github.com/liftsync/liftlog/internal/logging"
	"github.com/liftsync/liftlog/internal/metrics"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/store"
	"github.com/liftsync/liftlog/internal/syncqueue"
)

// DefaultConcurrency bounds the number of in-flight remote calls per
// batch.
const DefaultConcurrency = 3

// Engine replays queued mutations against the remote service.
type Engine struct {
	store       store.Store
	queue       *syncqueue.Queue
	remote      remoteService
	monitor     *connectivity.Monitor
	bus         *events.Bus
	concurrency int

	mu         sync.Mutex
	inProgress bool
}

// remoteService is the subset of the remote client the engine needs.
type remoteService interface {
	Insert(ctx context.Context, collection string, record *models.WorkoutRecord) (*models.WorkoutRecord, error)
	Delete(ctx context.Context, collection, id string) error
	Available() bool
}

// NewEngine creates an Engine and subscribes it to the
// connectivity-restored event so a reconnect triggers a drain.
func NewEngine(st store.Store, queue *syncqueue.Queue, remote remoteService, monitor *connectivity.Monitor, bus *events.Bus, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	e := &Engine{
		store:       st,
		queue:       queue,
		remote:      remote,
		monitor:     monitor,
		bus:         bus,
		concurrency: concurrency,
	}

	bus.Subscribe(events.ConnectivityRestored, func(any) {
		go e.ProcessQueue(context.Background())
	})

	return e
}

// itemResult is the settled outcome of a single dispatched item.
type itemResult struct {
	item *models.SyncQueueItem
	err  error
}

// ProcessQueue drains the current queue snapshot. It is idempotent
// and re-entrant safe: a call while offline, or while another pass is
// in progress, returns immediately without touching the queue. A pass
// that has started runs its snapshot to completion; ctx applies to
// the individual remote calls, not to the pass as a whole.
func (e *Engine) ProcessQueue(ctx context.Context) {
	if !e.monitor.IsOnline() || !e.remote.Available() {
		return
	}

	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return
	}
	e.inProgress = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	start := time.Now()
	snapshot := e.queue.Drain()
	if len(snapshot) == 0 {
		return
	}

	logging.Info("draining sync queue", logging.Fields{"items": len(snapshot)})

	summary := events.SyncSummary{}
	for offset := 0; offset < len(snapshot); offset += e.concurrency {
		end := offset + e.concurrency
		if end > len(snapshot) {
			end = len(snapshot)
		}

		// Settle-all within the batch: one failing item never blocks
		// the others, and a failing batch never blocks later batches.
		for _, res := range e.dispatchBatch(ctx, snapshot[offset:end]) {
			if res.err == nil {
				summary.SuccessCount++
			} else {
				summary.FailedCount++
				e.handleFailure(ctx, res.item, res.err)
			}
		}
	}

	metrics.ReplayPassDuration.Observe(time.Since(start).Seconds())
	metrics.QueueDepth.Set(float64(e.queue.Len()))
	e.persistSummary(ctx, summary)

	logging.Info("sync queue drained", logging.Fields{
		"succeeded": summary.SuccessCount,
		"failed":    summary.FailedCount,
	})
	e.bus.Publish(events.SyncCompleted, summary)
}

// dispatchBatch runs one batch of items concurrently and returns a
// settled result per item. Panics inside an item's dispatch are
// recovered and folded into that item's failure.
func (e *Engine) dispatchBatch(ctx context.Context, batch []*models.SyncQueueItem) []itemResult {
	results := make([]itemResult, len(batch))

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item *models.SyncQueueItem) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = itemResult{item: item, err: fmt.Errorf("sync dispatch panic: %v", r)}
				}
			}()
			results[i] = itemResult{item: item, err: e.dispatch(ctx, item)}
		}(i, item)
	}
	wg.Wait()

	return results
}

// dispatch performs one queued mutation against the remote service
// and, on success, removes it from the queue and settles local state.
func (e *Engine) dispatch(ctx context.Context, item *models.SyncQueueItem) error {
	switch item.OperationType {
	case models.OperationCreate, models.OperationUpdate:
		record, err := item.Record()
		if err != nil {
			return err
		}
		stored, err := e.remote.Insert(ctx, models.CollectionWorkoutSessions, record)
		if err != nil {
			return err
		}
		if err := e.queue.Dequeue(ctx, item.ID); err != nil {
			return err
		}
		if err := e.settleRecord(ctx, item.ID, stored); err != nil {
			return err
		}

	case models.OperationDelete:
		if err := e.remote.Delete(ctx, models.CollectionWorkoutSessions, item.ID); err != nil {
			return err
		}
		if err := e.queue.Dequeue(ctx, item.ID); err != nil {
			return err
		}

	default:
		return apperrors.New(apperrors.ErrInternal,
			fmt.Sprintf("unknown operation type %q for item %s", item.OperationType, item.ID))
	}

	metrics.ReplaySynced.Inc()
	return nil
}

// settleRecord marks the local record synced and, when the remote
// assigned a different id, re-keys the record and every local
// structure still referencing the old id.
func (e *Engine) settleRecord(ctx context.Context, localID string, stored *models.WorkoutRecord) error {
	var record models.WorkoutRecord
	if err := e.store.Get(ctx, models.CollectionWorkoutSessions, localID, &record); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Record deleted locally while its create was in flight;
			// nothing left to settle.
			return nil
		}
		return err
	}

	remoteID := localID
	if stored != nil && stored.ID != "" {
		remoteID = stored.ID
	}

	record.SyncStatus = models.SyncStatusSynced
	record.ID = remoteID

	if err := e.store.Put(ctx, models.CollectionWorkoutSessions, remoteID, &record); err != nil {
		return err
	}
	if remoteID != localID {
		if err := e.store.Delete(ctx, models.CollectionWorkoutSessions, localID); err != nil {
			return err
		}
		RemapTrainingLogs(ctx, e.store, localID, remoteID)
		e.remapQueuedItem(ctx, localID, remoteID)
		logging.Debug("record re-keyed to remote id",
			logging.Fields{"local_id": localID, "remote_id": remoteID})
	}
	return nil
}

// remapQueuedItem re-keys a queue entry that a concurrent save placed
// under the old id while this item's create was in flight. Without the
// rewrite that entry would replay against an id the remote never
// assigned.
func (e *Engine) remapQueuedItem(ctx context.Context, oldID, newID string) {
	pending, ok := e.queue.Get(oldID)
	if !ok {
		return
	}
	pending.ID = newID
	if rec, err := pending.Record(); err == nil {
		rec.ID = newID
		if err := pending.SetRecord(rec); err != nil {
			logging.Error("failed to re-key queued payload", err,
				logging.Fields{"id": oldID})
		}
	}
	if err := e.queue.Rewrite(ctx, oldID, pending); err != nil {
		logging.Error("failed to re-key queued item", err,
			logging.Fields{"id": oldID, "remote_id": newID})
	}
}

// RemapTrainingLogs rewrites training-log entries referencing a
// re-keyed record. Shared with the workout facade, which re-keys on a
// direct write-through the same way the engine does on replay.
// Best-effort: the log is an audit trail, so individual rewrite
// failures are logged and skipped.
func RemapTrainingLogs(ctx context.Context, st store.Store, oldID, newID string) {
	docs, err := st.GetAll(ctx, models.CollectionTrainingLogs)
	if err != nil {
		logging.Error("failed to load training logs for remap", err, nil)
		return
	}
	for _, doc := range docs {
		var entry models.TrainingLogEntry
		if err := json.Unmarshal(doc, &entry); err != nil || entry.RecordID != oldID {
			continue
		}
		entry.RecordID = newID
		if err := st.Put(ctx, models.CollectionTrainingLogs, entry.ID, &entry); err != nil {
			logging.Error("failed to remap training log entry", err,
				logging.Fields{"entry_id": entry.ID})
		}
	}
}

// handleFailure applies retry bookkeeping for a failed item. At the
// retry ceiling the item is dropped from the queue and surfaced via a
// sync-abandoned event; the local record stays pending.
func (e *Engine) handleFailure(ctx context.Context, item *models.SyncQueueItem, cause error) {
	metrics.ReplayFailed.Inc()

	updated, err := e.queue.MarkFailed(ctx, item.ID, cause)
	if err != nil {
		// Item vanished mid-pass (deleted by the user); nothing to retry.
		logging.Debug("failed item no longer queued",
			logging.Fields{"id": item.ID, "error": err.Error()})
		return
	}

	if updated.RetryCount < updated.MaxRetries {
		logging.Warn("sync attempt failed, item stays queued", logging.Fields{
			"id":        updated.ID,
			"operation": updated.OperationType,
			"retries":   updated.RetryCount,
			"max":       updated.MaxRetries,
			"error":     cause.Error(),
		})
		return
	}

	if err := e.queue.Dequeue(ctx, updated.ID); err != nil {
		logging.Error("failed to drop exhausted queue item", err,
			logging.Fields{"id": updated.ID})
		return
	}

	metrics.ReplayAbandoned.Inc()
	logging.Error("sync abandoned after exhausting retries",
		apperrors.Wrap(apperrors.ErrRetryExhausted, "item dropped from queue", cause),
		logging.Fields{"id": updated.ID, "operation": updated.OperationType})

	e.bus.Publish(events.SyncAbandoned, events.AbandonedItem{
		ItemID:    updated.ID,
		LastError: updated.LastError,
	})
}

// persistSummary stores the last drain summary in the settings
// collection so the UI can surface it after a restart.
func (e *Engine) persistSummary(ctx context.Context, summary events.SyncSummary) {
	value, err := json.Marshal(summary)
	if err != nil {
		return
	}
	setting := models.Setting{
		Key:       models.SettingLastDrainSummary,
		Value:     string(value),
		UpdatedAt: time.Now().Unix(),
	}
	if err := e.store.Put(ctx, models.CollectionSettings, setting.Key, &setting); err != nil {
		logging.Error("failed to persist drain summary", err, nil)
	}
}
