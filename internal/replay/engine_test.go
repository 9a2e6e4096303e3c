package replay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftsync/liftlog/internal/connectivity"
	"github.com/liftsync/liftlog/internal/events"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/store"
	"github.com/liftsync/liftlog/internal/syncqueue"
)

// fakeRemote is a scriptable stand-in for the hosted record service.
type fakeRemote struct {
	mu          sync.Mutex
	unavailable bool
	errByID     map[string]error
	assignID    map[string]string // local id -> remote-assigned id
	insertCalls []string
	deleteCalls []string
	gate        chan struct{} // when set, Insert blocks until closed
	started     chan struct{} // signaled when an Insert begins
}

func (f *fakeRemote) Insert(ctx context.Context, collection string, record *models.WorkoutRecord) (*models.WorkoutRecord, error) {
	f.mu.Lock()
	f.insertCalls = append(f.insertCalls, record.ID)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errByID[record.ID]; err != nil {
		return nil, err
	}

	stored := record.Clone()
	if remoteID, ok := f.assignID[record.ID]; ok {
		stored.ID = remoteID
	}
	return stored, nil
}

func (f *fakeRemote) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.errByID[id]
}

func (f *fakeRemote) Available() bool {
	return !f.unavailable
}

func (f *fakeRemote) inserts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.insertCalls...)
}

type fixture struct {
	store   store.Store
	queue   *syncqueue.Queue
	remote  *fakeRemote
	monitor *connectivity.Monitor
	bus     *events.Bus
	engine  *Engine

	summaries *[]events.SyncSummary
	abandoned *[]events.AbandonedItem
}

func newFixture(t *testing.T, state connectivity.State) *fixture {
	t.Helper()

	st := store.NewMemory()
	queue := syncqueue.NewQueue(st, 100)
	remote := &fakeRemote{errByID: map[string]error{}, assignID: map[string]string{}}
	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, state, nil)

	summaries := &[]events.SyncSummary{}
	abandoned := &[]events.AbandonedItem{}
	var mu sync.Mutex
	bus.Subscribe(events.SyncCompleted, func(p any) {
		mu.Lock()
		defer mu.Unlock()
		*summaries = append(*summaries, p.(events.SyncSummary))
	})
	bus.Subscribe(events.SyncAbandoned, func(p any) {
		mu.Lock()
		defer mu.Unlock()
		*abandoned = append(*abandoned, p.(events.AbandonedItem))
	})

	return &fixture{
		store:     st,
		queue:     queue,
		remote:    remote,
		monitor:   monitor,
		bus:       bus,
		engine:    NewEngine(st, queue, remote, monitor, bus, 3),
		summaries: summaries,
		abandoned: abandoned,
	}
}

// seedPending writes a pending record and its matching queue entry,
// the state a failed or offline save leaves behind.
func (f *fixture) seedPending(t *testing.T, id string, op models.OperationType) {
	t.Helper()
	ctx := context.Background()

	record := &models.WorkoutRecord{
		ID:           id,
		UserID:       "user-1",
		Date:         "2024-01-01",
		MuscleGroups: []string{"chest"},
		Exercises:    []models.Exercise{},
		Source:       models.SourceLocal,
		SyncStatus:   models.SyncStatusPending,
		CreatedAt:    time.Now().Unix(),
	}
	if op != models.OperationDelete {
		require.NoError(t, f.store.Put(ctx, models.CollectionWorkoutSessions, id, record))
	}

	item := &models.SyncQueueItem{ID: id, OperationType: op}
	require.NoError(t, item.SetRecord(record))
	require.NoError(t, f.queue.Enqueue(ctx, item))
}

func (f *fixture) localRecord(t *testing.T, id string) *models.WorkoutRecord {
	t.Helper()
	var rec models.WorkoutRecord
	require.NoError(t, f.store.Get(context.Background(), models.CollectionWorkoutSessions, id, &rec))
	return &rec
}

func TestProcessQueueDrainsAndMarksSynced(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.seedPending(t, "rec-1", models.OperationCreate)
	f.seedPending(t, "rec-2", models.OperationUpdate)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, models.SyncStatusSynced, f.localRecord(t, "rec-1").SyncStatus)
	assert.Equal(t, models.SyncStatusSynced, f.localRecord(t, "rec-2").SyncStatus)

	require.Len(t, *f.summaries, 1)
	assert.Equal(t, events.SyncSummary{SuccessCount: 2, FailedCount: 0}, (*f.summaries)[0])
}

func TestProcessQueueOfflineIsNoop(t *testing.T) {
	f := newFixture(t, connectivity.Offline)
	f.seedPending(t, "rec-1", models.OperationCreate)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.remote.inserts())
	assert.Empty(t, *f.summaries)
}

func TestProcessQueueRemoteUnavailableIsNoop(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.remote.unavailable = true
	f.seedPending(t, "rec-1", models.OperationCreate)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.remote.inserts())
}

func TestRetryCeilingAbandonsItem(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.seedPending(t, "rec-1", models.OperationCreate)
	f.remote.errByID["rec-1"] = assert.AnError
	ctx := context.Background()

	// First two failures leave the item queued with its counter bumped.
	for attempt := 1; attempt <= syncqueue.DefaultMaxRetries-1; attempt++ {
		f.engine.ProcessQueue(ctx)
		item, ok := f.queue.Get("rec-1")
		require.True(t, ok, "attempt %d should leave the item queued", attempt)
		assert.Equal(t, attempt, item.RetryCount)
		assert.NotEmpty(t, item.LastError)
	}

	// The final failure drops the item and surfaces it exactly once.
	f.engine.ProcessQueue(ctx)
	_, ok := f.queue.Get("rec-1")
	assert.False(t, ok)
	require.Len(t, *f.abandoned, 1)
	assert.Equal(t, "rec-1", (*f.abandoned)[0].ItemID)

	// The record stays locally correct but unmanaged.
	assert.Equal(t, models.SyncStatusPending, f.localRecord(t, "rec-1").SyncStatus)

	// Nothing left to retry.
	f.engine.ProcessQueue(ctx)
	assert.Len(t, *f.abandoned, 1)
}

func TestConcurrentProcessQueueIsNoop(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.seedPending(t, "rec-1", models.OperationCreate)

	f.remote.gate = make(chan struct{})
	f.remote.started = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		f.engine.ProcessQueue(context.Background())
		close(done)
	}()

	<-f.remote.started

	// Second call while the first pass is in flight: returns
	// immediately without dispatching anything.
	f.engine.ProcessQueue(context.Background())
	assert.Len(t, f.remote.inserts(), 1)

	close(f.remote.gate)
	<-done

	assert.Equal(t, 0, f.queue.Len())
	assert.Len(t, f.remote.inserts(), 1)
	assert.Len(t, *f.summaries, 1)
}

func TestRemoteAssignedIDRemapsLocalState(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	localID := "local-temp-1"
	f.seedPending(t, localID, models.OperationCreate)
	f.remote.assignID[localID] = "cloud-42"
	ctx := context.Background()

	// A training log entry still referencing the client id.
	entry := models.TrainingLogEntry{ID: "log-1", RecordID: localID, Operation: "save", LoggedAt: 1}
	require.NoError(t, f.store.Put(ctx, models.CollectionTrainingLogs, entry.ID, &entry))

	f.engine.ProcessQueue(ctx)

	rec := f.localRecord(t, "cloud-42")
	assert.Equal(t, models.SyncStatusSynced, rec.SyncStatus)

	var gone models.WorkoutRecord
	err := f.store.Get(ctx, models.CollectionWorkoutSessions, localID, &gone)
	assert.Error(t, err)

	var remapped models.TrainingLogEntry
	require.NoError(t, f.store.Get(ctx, models.CollectionTrainingLogs, "log-1", &remapped))
	assert.Equal(t, "cloud-42", remapped.RecordID)
}

func TestBatchFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.seedPending(t, id, models.OperationCreate)
	}
	f.remote.errByID["b"] = assert.AnError

	f.engine.ProcessQueue(context.Background())

	require.Len(t, *f.summaries, 1)
	assert.Equal(t, events.SyncSummary{SuccessCount: 3, FailedCount: 1}, (*f.summaries)[0])

	// The failing item stays queued for the next pass.
	item, ok := f.queue.Get("b")
	require.True(t, ok)
	assert.Equal(t, 1, item.RetryCount)
	assert.Equal(t, models.SyncStatusSynced, f.localRecord(t, "a").SyncStatus)
}

func TestDeleteOperationDispatchesRemoteDelete(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.seedPending(t, "rec-1", models.OperationDelete)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, []string{"rec-1"}, f.remote.deleteCalls)
	assert.Empty(t, f.remote.inserts())
}

func TestConnectivityRestoredTriggersDrain(t *testing.T) {
	f := newFixture(t, connectivity.Offline)
	f.seedPending(t, "rec-1", models.OperationCreate)

	f.monitor.SetOnline(true)

	require.Eventually(t, func() bool {
		return f.queue.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.SyncStatusSynced, f.localRecord(t, "rec-1").SyncStatus)
}

func TestDrainSummaryPersisted(t *testing.T) {
	f := newFixture(t, connectivity.Online)
	f.seedPending(t, "rec-1", models.OperationCreate)
	ctx := context.Background()

	f.engine.ProcessQueue(ctx)

	var setting models.Setting
	require.NoError(t, f.store.Get(ctx, models.CollectionSettings, models.SettingLastDrainSummary, &setting))

	var summary events.SyncSummary
	require.NoError(t, json.Unmarshal([]byte(setting.Value), &summary))
	assert.Equal(t, events.SyncSummary{SuccessCount: 1, FailedCount: 0}, summary)
}
