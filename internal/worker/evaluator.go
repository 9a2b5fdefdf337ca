package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reputation-engine/internal/config"
	"github.com/reputation-engine/internal/domain"
)

// evaluatorLease names the lease shared by all replicas
const evaluatorLease = "badge-evaluator"

// BadgeEvaluator runs every badge rule once
type BadgeEvaluator interface {
	Evaluate(ctx context.Context, trigger string) domain.EvaluationResult
}

// Locker hands out a named lease to one replica at a time
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// EvaluatorWorker runs the badge rules on a schedule
type EvaluatorWorker struct {
	evaluator BadgeEvaluator
	lease     Locker
	config    *config.EvaluatorConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewEvaluatorWorker creates a scheduled evaluator. lease may be nil, in
// which case every replica evaluates on its own schedule.
func NewEvaluatorWorker(
	evaluator BadgeEvaluator,
	lease Locker,
	cfg *config.EvaluatorConfig,
	logger *slog.Logger,
) *EvaluatorWorker {
	return &EvaluatorWorker{
		evaluator: evaluator,
		lease:     lease,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins scheduled evaluation
func (w *EvaluatorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("evaluator worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops scheduled evaluation and waits for an in-flight run
func (w *EvaluatorWorker) Stop() error {
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

	w.logger.Info("evaluator worker stopped")
	return nil
}

func (w *EvaluatorWorker) run(ctx context.Context) {
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
			w.RunOnce(ctx)
		}
	}
}

// RunOnce evaluates the rules if this replica holds the lease. It reports
// whether an evaluation ran.
func (w *EvaluatorWorker) RunOnce(ctx context.Context) (domain.EvaluationResult, bool) {
	if w.lease != nil {
		acquired, err := w.lease.Acquire(ctx, evaluatorLease, w.config.LeaseTTL)
		switch {
		case err != nil:
			// runs are idempotent; the lease only avoids duplicate work
			w.logger.Warn("evaluator lease unavailable, running anyway", "error", err)
		case !acquired:
			w.logger.Debug("evaluator lease held elsewhere, skipping run")
			return domain.EvaluationResult{}, false
		default:
			defer func() {
				if err := w.lease.Release(ctx, evaluatorLease); err != nil {
					w.logger.Warn("failed to release evaluator lease", "error", err)
				}
			}()
		}
	}

	return w.evaluator.Evaluate(ctx, "scheduled"), true
}

// IsRunning returns whether the worker is currently running
func (w *EvaluatorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
