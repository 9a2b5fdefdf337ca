package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
)

// PointsSource returns the authoritative point total of every user
type PointsSource interface {
	AllPoints(ctx context.Context) ([]domain.PointsSnapshot, error)
}

// StandingsReconciler merges a snapshot into the standings mirror
type StandingsReconciler interface {
	Reconcile(ctx context.Context, snapshot []domain.PointsSnapshot, batchSize int) error
	Count(ctx context.Context) (int64, error)
}

// SyncWorker periodically reconciles the Redis standings with PostgreSQL
type SyncWorker struct {
	source    PointsSource
	standings StandingsReconciler
	config    *config.SyncConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source PointsSource,
	standings StandingsReconciler,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source:    source,
		standings: standings,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background sync process
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

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("standings sync failed", "error", err)
			}
		}
	}
}

// RunOnce reconciles the standings mirror with the current point totals
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	startTime := time.Now()

	snapshot, err := w.source.AllPoints(ctx)
	if err != nil {
		return err
	}

	if err := w.standings.Reconcile(ctx, snapshot, w.config.BatchSize); err != nil {
		return err
	}

	count, err := w.standings.Count(ctx)
	if err != nil {
		w.logger.Warn("failed to count standings after sync", "error", err)
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"users", len(snapshot),
		"mirrored", count,
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
