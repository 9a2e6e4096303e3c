// Package main is the composition root for the LiftLog sync core.
// Every component is constructed and wired explicitly here; nothing
// relies on package-level singletons, so hosts embedding the core can
// assemble the same graph with their own collaborators.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liftsync/liftlog/internal/config"
	"github.com/liftsync/liftlog/internal/connectivity"
	"github.com/liftsync/liftlog/internal/events"
	"github.com/liftsync/liftlog/internal/logging"
	"github.com/liftsync/liftlog/internal/models"
	"github.com/liftsync/liftlog/internal/remote"
	"github.com/liftsync/liftlog/internal/replay"
	"github.com/liftsync/liftlog/internal/scheduler"
	"github.com/liftsync/liftlog/internal/store"
	"github.com/liftsync/liftlog/internal/syncqueue"
	"github.com/liftsync/liftlog/internal/workout"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout, cfg.LogLevel)
	logging.Info("liftlog core starting", logging.Fields{"version": Version})

	st := store.Open(cfg.DataDir)
	defer st.Close()
	if !st.Durable() {
		logging.Warn("running with degraded durability: records will not survive a restart", nil)
	}
	markDegradedStorage(st)

	queue := syncqueue.NewQueue(st, cfg.QueueMaxSize)
	if err := queue.Restore(context.Background()); err != nil {
		logging.Error("failed to restore sync queue", err, nil)
		os.Exit(1)
	}

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		APIKey:  cfg.RemoteAPIKey,
	})

	bus := events.NewBus()
	monitor := connectivity.NewMonitor(bus, connectivity.Online, nil)
	engine := replay.NewEngine(st, queue, client, monitor, bus, cfg.ReplayConcurrency)

	identity := workout.IdentityFunc(func() string { return cfg.UserID })
	service := workout.NewService(st, queue, monitor, client, identity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if records, err := service.Load(ctx, workout.LoadOptions{}); err == nil {
		logging.Info("workout store ready", logging.Fields{
			"records":       len(records),
			"pending_items": queue.Len(),
		})
	}

	sched := scheduler.NewScheduler(engine, queue, monitor, cfg.SchedulerInterval)
	sched.Start(ctx)

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress)
	}

	// Initial drain picks up work left queued by the previous run.
	go engine.ProcessQueue(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("liftlog core shutting down", nil)
	sched.Stop()
}

// markDegradedStorage records whether this run is on the in-memory
// fallback, so host UIs can tell the user their data is ephemeral.
func markDegradedStorage(st store.Store) {
	setting := models.Setting{
		Key:       models.SettingDegradedStorage,
		Value:     strconv.FormatBool(!st.Durable()),
		UpdatedAt: time.Now().Unix(),
	}
	if err := st.Put(context.Background(), models.CollectionSettings, setting.Key, &setting); err != nil {
		logging.Error("failed to record storage durability flag", err, nil)
	}
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		logging.Error("metrics listener failed", err, nil)
	}
}
