package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenBatchReconciler is the part of the payout service the poller needs.
type OpenBatchReconciler interface {
	ReconcileOpen(ctx context.Context) (int, error)
}

// ReconcileWorker periodically pulls the status of every open payout batch.
type ReconcileWorker struct {
	log        logrus.FieldLogger
	reconciler OpenBatchReconciler
	interval   time.Duration
}

func NewReconcileWorker(log logrus.FieldLogger, reconciler OpenBatchReconciler, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconcileWorker{
		log:        log.WithField("component", "reconcile_worker"),
		reconciler: reconciler,
		interval:   interval,
	}
}

// Run blocks until ctx is done. A failed tick is logged and retried on the
// next one.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("reconcile worker started")

	for {
		w.tick(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("reconcile worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReconcileWorker) tick(ctx context.Context) {
	start := time.Now()
	n, err := w.reconciler.ReconcileOpen(ctx)

	entry := w.log.WithFields(logrus.Fields{
		"reconciled":  n,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("reconcile iteration finished with errors")
		return
	}
	if n > 0 {
		entry.Info("reconcile iteration finished")
	}
}
