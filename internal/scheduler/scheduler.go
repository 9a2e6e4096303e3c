// Package scheduler runs the periodic background drain of the sync
// queue. Connectivity transitions already trigger a drain through the
// event bus; the scheduler covers the case where the client stayed
// online but earlier attempts left retryable items queued.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/liftsync/liftlog/internal/connectivity"
	"github.com/liftsync/liftlog/internal/logging"
	"github.com/liftsync/liftlog/internal/replay"
	"github.com/liftsync/liftlog/internal/syncqueue"
)

// DefaultInterval is the drain interval applied when none is
// configured.
const DefaultInterval = time.Minute

// Scheduler owns the background drain loop.
type Scheduler struct {
	engine   *replay.Engine
	queue    *syncqueue.Queue
	monitor  *connectivity.Monitor
	interval time.Duration

	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a Scheduler. interval <= 0 selects the
// default.
func NewScheduler(engine *replay.Engine, queue *syncqueue.Queue, monitor *connectivity.Monitor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		engine:   engine,
		queue:    queue,
		monitor:  monitor,
		interval: interval,
	}
}

// Start launches the drain loop. Calling Start on a running scheduler
// is a no-op; a stopped scheduler can be started again.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.drainLoop(ctx, stopCh)

	logging.Info("background sync scheduler started",
		logging.Fields{"interval": s.interval.String()})
}

// Stop stops the loop and performs a final best-effort persist of the
// queue cache. It does not cancel a drain already running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()

	s.queue.Flush(context.Background())
	logging.Info("background sync scheduler stopped", nil)
}

// drainLoop triggers a queue drain every interval while online.
func (s *Scheduler) drainLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.monitor.IsOnline() || s.queue.Len() == 0 {
				continue
			}
			s.engine.ProcessQueue(ctx)
		}
	}
}
