package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/elo-ledger/internal/config"
)

// RankingSyncer rebuilds the ranking cache from the ledger store
type RankingSyncer interface {
	SyncRankings(ctx context.Context) (int, error)
}

// SyncWorker periodically rebuilds the Redis rankings from the store so the
// cache recovers from missed updates and restarts
type SyncWorker struct {
	syncer  RankingSyncer
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(syncer RankingSyncer, cfg *config.SyncConfig, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		syncer: syncer,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs one rebuild immediately and then one per interval
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.syncAll(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

// syncAll rebuilds every leaderboard's rankings
func (w *SyncWorker) syncAll(ctx context.Context) int {
	w.logger.Info("starting sync cycle")
	startTime := time.Now()

	synced, err := w.syncer.SyncRankings(ctx)
	if err != nil {
		w.logger.Error("ranking sync failed", "error", err)
		return 0
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"synced", synced,
	)
	return synced
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle and returns the number of leaderboards rebuilt
func (w *SyncWorker) RunOnce(ctx context.Context) int {
	return w.syncAll(ctx)
}
