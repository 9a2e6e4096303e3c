package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftsync/liftlog/internal/connectivity"
	"github.com/liftsync/liftlog/internal/events"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/replay"
	"github.com/liftsync/liftlog/internal/store"
	"github.com/liftsync/liftlog/internal/syncqueue"
)

type stubRemote struct{}

func (stubRemote) Insert(ctx context.Context, collection string, record *models.WorkoutRecord) (*models.WorkoutRecord, error) {
	return record.Clone(), nil
}

func (stubRemote) Delete(ctx context.Context, collection, id string) error { return nil }

func (stubRemote) Available() bool { return true }

func seedQueue(t *testing.T, st store.Store, queue *syncqueue.Queue, id string) {
	t.Helper()
	ctx := context.Background()

	record := &models.WorkoutRecord{
		ID:           id,
		Date:         "2024-01-01",
		MuscleGroups: []string{},
		Exercises:    []models.Exercise{},
		SyncStatus:   models.SyncStatusPending,
	}
	require.NoError(t, st.Put(ctx, models.CollectionWorkoutSessions, id, record))

	item := &models.SyncQueueItem{ID: id, OperationType: models.OperationCreate}
	require.NoError(t, item.SetRecord(record))
	require.NoError(t, queue.Enqueue(ctx, item))
}

func TestSchedulerDrainsQueuedItems(t *testing.T) {
	st := store.NewMemory()
	queue := syncqueue.NewQueue(st, 10)
	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, connectivity.Online, nil)
	engine := replay.NewEngine(st, queue, stubRemote{}, monitor, bus, 1)

	seedQueue(t, st, queue, "rec-1")

	sched := NewScheduler(engine, queue, monitor, 10*time.Millisecond)
	sched.Start(context.Background())
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return queue.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerSkipsWhileOffline(t *testing.T) {
	st := store.NewMemory()
	queue := syncqueue.NewQueue(st, 10)
	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, connectivity.Offline, nil)
	engine := replay.NewEngine(st, queue, stubRemote{}, monitor, bus, 1)

	seedQueue(t, st, queue, "rec-1")

	sched := NewScheduler(engine, queue, monitor, 10*time.Millisecond)
	sched.Start(context.Background())
	defer sched.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, queue.Len())
}

func TestSchedulerRestartsAfterStop(t *testing.T) {
	st := store.NewMemory()
	queue := syncqueue.NewQueue(st, 10)
	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, connectivity.Online, nil)
	engine := replay.NewEngine(st, queue, stubRemote{}, monitor, bus, 1)

	sched := NewScheduler(engine, queue, monitor, 10*time.Millisecond)
	sched.Start(context.Background())
	sched.Stop()

	// A second Start gets a fresh drain loop, not a dead one.
	seedQueue(t, st, queue, "rec-1")
	sched.Start(context.Background())
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return queue.Len() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	st := store.NewMemory()
	queue := syncqueue.NewQueue(st, 10)
	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, connectivity.Online, nil)
	engine := replay.NewEngine(st, queue, stubRemote{}, monitor, bus, 1)

	sched := NewScheduler(engine, queue, monitor, time.Hour)
	sched.Start(context.Background())
	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
}
