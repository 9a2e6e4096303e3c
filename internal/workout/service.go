// Package workout provides the consumer-facing data service. It is
// the single entry point UI code uses to save, load, and delete
// workout records, and it decides at call time whether to write
// through to the remote service or fall back to local-only.
//
// Saves never block on or fail due to network conditions: the local
// write is the operation of record, and a failed or skipped remote
// write is converted into a sync queue entry replayed later.
package workout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/liftsync/liftlog/internal/connectivity"
	apperrors "github.com/liftsync/liftlog/internal/errors"
	"github.com/liftsync/liftlog/internal/logging"
	"github.com/liftsync/liftlog/internal/merge"
	"github.com/liftsync/liftlog/internal/metrics"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/remote"
	"github.com/liftsync/liftlog/internal/replay"
	"github.com/liftsync/liftlog/internal/store"
	"github.com/liftsync/liftlog/internal/syncqueue"
	"github.com/liftsync/liftlog/internal/uuid"
)

// Identity supplies the authenticated user id scoping all remote
// operations. Supplied by the host's auth subsystem.
type Identity interface {
	CurrentUserID() string
}

// IdentityFunc adapts a plain function to the Identity interface.
type IdentityFunc func() string

// CurrentUserID implements Identity.
func (f IdentityFunc) CurrentUserID() string { return f() }

// LoadOptions narrows a Load call. Zero values mean no limit and an
// open date range.
type LoadOptions struct {
	Limit     int
	StartDate string // inclusive, calendar date
	EndDate   string // inclusive, calendar date
}

// Service is the workout data facade.
type Service struct {
	store    store.Store
	queue    *syncqueue.Queue
	monitor  *connectivity.Monitor
	remote   remote.RecordService
	identity Identity
	validate *validator.Validate
}

// NewService creates a Service with its collaborators injected.
func NewService(st store.Store, queue *syncqueue.Queue, monitor *connectivity.Monitor, svc remote.RecordService, identity Identity) *Service {
	return &Service{
		store:    st,
		queue:    queue,
		monitor:  monitor,
		remote:   svc,
		identity: identity,
		validate: validator.New(),
	}
}

// Save validates and persists a workout record. The local write
// always happens first; when the client is online, authenticated, and
// the remote service is available, the record is also written through.
// A remote failure leaves the record pending with a queued retry, and
// Save still reports success because local durability was achieved.
// Validation failures are a no-op: nothing is written anywhere.
func (s *Service) Save(ctx context.Context, record *models.WorkoutRecord) error {
	if err := s.checkRecord(record); err != nil {
		return err
	}

	now := time.Now().Unix()
	existed := false
	if record.ID == "" {
		record.ID = uuid.NewLocal()
		record.CreatedAt = now
	} else {
		var prev models.WorkoutRecord
		existed = s.store.Get(ctx, models.CollectionWorkoutSessions, record.ID, &prev) == nil
		if !existed && record.CreatedAt == 0 {
			record.CreatedAt = now
		}
	}
	record.UpdatedAt = now
	record.Source = models.SourceLocal
	record.SyncStatus = models.SyncStatusPending
	if record.UserID == "" {
		record.UserID = s.identity.CurrentUserID()
	}
	record.Normalize()

	if err := s.store.Put(ctx, models.CollectionWorkoutSessions, record.ID, record); err != nil {
		// Local-write failure has no further fallback.
		return err
	}
	s.appendTrainingLog(ctx, record.ID, "save")
	metrics.RecordsSaved.Inc()

	op := models.OperationCreate
	if existed {
		op = models.OperationUpdate
	}

	if !s.writeThroughReady() {
		s.enqueue(ctx, record, op)
		return nil
	}

	stored, err := s.remote.Insert(ctx, models.CollectionWorkoutSessions, record)
	if err != nil {
		logging.Warn("remote write failed, queueing for replay",
			logging.Fields{"id": record.ID, "error": err.Error()})
		s.enqueue(ctx, record, op)
		return nil
	}

	// The remote now holds this record, so a queue entry left by an
	// earlier offline save is superseded. It must go before the record
	// is marked synced: a synced record never has a queue entry. If the
	// dequeue fails, the record stays pending next to its entry and the
	// replay engine settles both.
	if err := s.queue.Dequeue(ctx, record.ID); err != nil {
		logging.Error("failed to drop superseded queue item; record stays pending", err,
			logging.Fields{"id": record.ID})
		return nil
	}
	metrics.QueueDepth.Set(float64(s.queue.Len()))

	record.SyncStatus = models.SyncStatusSynced
	if stored != nil && stored.ID != "" && stored.ID != record.ID {
		// Remote assigned its own id; re-key the local copy.
		oldID := record.ID
		record.ID = stored.ID
		if err := s.store.Put(ctx, models.CollectionWorkoutSessions, record.ID, record); err != nil {
			return err
		}
		if err := s.store.Delete(ctx, models.CollectionWorkoutSessions, oldID); err != nil {
			return err
		}
		replay.RemapTrainingLogs(ctx, s.store, oldID, record.ID)
		return nil
	}
	return s.store.Put(ctx, models.CollectionWorkoutSessions, record.ID, record)
}

// Load returns the merged local and remote record set, newest first,
// filtered by the options' date range and limit. Remote fetch
// failures degrade to the local-only view rather than failing the
// load.
func (s *Service) Load(ctx context.Context, opts LoadOptions) ([]models.WorkoutRecord, error) {
	local, err := s.localRecords(ctx)
	if err != nil {
		return nil, err
	}

	var cloud []models.WorkoutRecord
	if s.writeThroughReady() {
		cloud, err = s.remote.Select(ctx, models.CollectionWorkoutSessions, s.identity.CurrentUserID())
		if err != nil {
			logging.Warn("remote fetch failed, serving local records only",
				logging.Fields{"error": err.Error()})
			cloud = nil
		}
	}

	merged := merge.Merge(local, cloud)
	merged = filterByDate(merged, opts.StartDate, opts.EndDate)
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}

// Delete removes a record locally and cancels any pending sync work
// for it. A record whose creation was still queued never reaches the
// network at all; a record the remote may already hold gets a remote
// delete, retried via the queue on failure.
func (s *Service) Delete(ctx context.Context, id string) error {
	pending, hadPending := s.queue.Get(id)

	if err := s.store.Delete(ctx, models.CollectionWorkoutSessions, id); err != nil {
		return err
	}
	s.appendTrainingLog(ctx, id, "delete")

	if hadPending {
		if err := s.queue.Dequeue(ctx, id); err != nil {
			return err
		}
		if pending.OperationType == models.OperationCreate {
			// The remote never saw this record; deleting locally is
			// the whole operation.
			return nil
		}
	}

	if !s.writeThroughReady() {
		s.enqueueDelete(ctx, id)
		return nil
	}

	if err := s.remote.Delete(ctx, models.CollectionWorkoutSessions, id); err != nil {
		logging.Warn("remote delete failed, queueing for replay",
			logging.Fields{"id": id, "error": err.Error()})
		s.enqueueDelete(ctx, id)
	}
	return nil
}

// checkRecord enforces the facade's input contract: a calendar date,
// non-nil muscle-group and exercise arrays, and a non-negative
// duration. Violations surface as VALIDATION_ERROR with no state
// change.
func (s *Service) checkRecord(record *models.WorkoutRecord) error {
	if record == nil {
		return apperrors.New(apperrors.ErrValidation, "record is required")
	}
	if record.MuscleGroups == nil {
		return apperrors.New(apperrors.ErrValidation, "muscleGroups must be an array")
	}
	if record.Exercises == nil {
		return apperrors.New(apperrors.ErrValidation, "exercises must be an array")
	}
	if err := s.validate.Struct(record); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid workout record", err)
	}
	if _, ok := record.DateTime(); !ok {
		return apperrors.New(apperrors.ErrValidation, "date must be a calendar date (YYYY-MM-DD)")
	}
	return nil
}

// writeThroughReady reports whether a remote attempt makes sense
// right now: online, remote configured, identity present.
func (s *Service) writeThroughReady() bool {
	return s.monitor.IsOnline() && s.remote.Available() && s.identity.CurrentUserID() != ""
}

// enqueue records a pending CREATE/UPDATE for later replay. A queue
// persist failure after a successful record write is the accepted
// narrow window: the record stays durable and pending, and the miss
// is logged rather than failing the save.
func (s *Service) enqueue(ctx context.Context, record *models.WorkoutRecord, op models.OperationType) {
	item := &models.SyncQueueItem{
		ID:            record.ID,
		OperationType: op,
	}
	if err := item.SetRecord(record); err != nil {
		logging.Error("failed to snapshot record for sync queue", err,
			logging.Fields{"id": record.ID})
		return
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		logging.Error("failed to enqueue sync item; record stays pending until next reconciliation", err,
			logging.Fields{"id": record.ID})
		return
	}
	metrics.QueueDepth.Set(float64(s.queue.Len()))
}

// enqueueDelete records a pending DELETE for later replay.
func (s *Service) enqueueDelete(ctx context.Context, id string) {
	item := &models.SyncQueueItem{
		ID:            id,
		OperationType: models.OperationDelete,
		Payload:       json.RawMessage(`{}`),
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		logging.Error("failed to enqueue delete; remote copy may outlive local", err,
			logging.Fields{"id": id})
		return
	}
	metrics.QueueDepth.Set(float64(s.queue.Len()))
}

// localRecords decodes the workoutSessions collection.
func (s *Service) localRecords(ctx context.Context) ([]models.WorkoutRecord, error) {
	docs, err := s.store.GetAll(ctx, models.CollectionWorkoutSessions)
	if err != nil {
		return nil, err
	}
	records := make([]models.WorkoutRecord, 0, len(docs))
	for _, doc := range docs {
		var rec models.WorkoutRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			logging.Warn("skipping undecodable workout record",
				logging.Fields{"error": err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// appendTrainingLog mirrors a mutation into the training log. The log
// is an audit trail; failures are logged, never fatal to the caller's
// operation.
func (s *Service) appendTrainingLog(ctx context.Context, recordID, operation string) {
	entry := models.TrainingLogEntry{
		ID:        uuid.New(),
		RecordID:  recordID,
		Operation: operation,
		LoggedAt:  time.Now().Unix(),
	}
	if err := s.store.Put(ctx, models.CollectionTrainingLogs, entry.ID, &entry); err != nil {
		logging.Error("failed to append training log entry", err,
			logging.Fields{"record_id": recordID})
	}
}

// filterByDate keeps records whose sort time falls inside the
// inclusive [start, end] calendar range. Unparseable bounds are
// ignored.
func filterByDate(records []models.WorkoutRecord, startDate, endDate string) []models.WorkoutRecord {
	start, hasStart := parseDate(startDate)
	end, hasEnd := parseDate(endDate)
	if !hasStart && !hasEnd {
		return records
	}

	out := make([]models.WorkoutRecord, 0, len(records))
	for _, rec := range records {
		t := rec.SortTime()
		if hasStart && t.Before(start) {
			continue
		}
		if hasEnd && t.After(end.Add(24*time.Hour-time.Nanosecond)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
