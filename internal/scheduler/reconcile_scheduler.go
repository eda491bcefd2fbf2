package scheduler

import (
	"context"

	"github.com/ikkim/storerating-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// AggregateReconciler recomputes drifted store aggregate columns
type AggregateReconciler interface {
	ReconcileAggregates() (int64, error)
}

// ReconcileRecorder observes the outcome of a run. Optional.
type ReconcileRecorder interface {
	RecordReconciled(n int64)
}

// ReconcileScheduler runs aggregate reconciliation on a cron schedule
type ReconcileScheduler struct {
	cron       *cron.Cron
	spec       string
	reconciler AggregateReconciler
	recorder   ReconcileRecorder
}

// NewReconcileScheduler creates the scheduler. An empty spec disables it.
func NewReconcileScheduler(spec string, reconciler AggregateReconciler, recorder ReconcileRecorder) *ReconcileScheduler {
	return &ReconcileScheduler{
		cron:       cron.New(),
		spec:       spec,
		reconciler: reconciler,
		recorder:   recorder,
	}
}

// Enabled reports whether a schedule was configured
func (s *ReconcileScheduler) Enabled() bool {
	return s.spec != ""
}

// Start registers the job and starts the cron runner
func (s *ReconcileScheduler) Start() error {
	if !s.Enabled() {
		logger.Info("Aggregate reconcile scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce() }); err != nil {
		logger.Error("Failed to add cron job for aggregate reconciliation", err, map[string]interface{}{
			"spec": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Aggregate reconcile scheduler started", map[string]interface{}{
		"spec": s.spec,
	})
	return nil
}

// RunOnce performs a single reconciliation pass
func (s *ReconcileScheduler) RunOnce() (int64, error) {
	logger.Info("Starting scheduled aggregate reconciliation")

	corrected, err := s.reconciler.ReconcileAggregates()
	if err != nil {
		logger.Error("Scheduled aggregate reconciliation failed", err)
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.RecordReconciled(corrected)
	}

	logger.Info("Scheduled aggregate reconciliation finished", map[string]interface{}{
		"stores_updated": corrected,
	})
	return corrected, nil
}

// Stop stops the runner and returns a context that is done once any
// in-flight run has finished.
func (s *ReconcileScheduler) Stop() context.Context {
	logger.Info("Stopping aggregate reconcile scheduler...")
	return s.cron.Stop()
}
