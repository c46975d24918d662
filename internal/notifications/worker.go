package notifications

import (
	"context"
	"log/slog"
	"time"
)

// Worker runs the periodic delivery loop: each tick claims every due pending
// record, dispatches it with a bounded timeout, and finalizes it as sent.
// Claiming flips records to "sending" inside the store's critical section,
// so a slow tick overlapping the next interval cannot redeliver.
type Worker struct {
	store           Store
	dispatcher      *Dispatcher
	clock           Clock
	interval        time.Duration
	dispatchTimeout time.Duration
	retention       time.Duration // age of sent/cancelled records to keep; 0 disables the sweep
	retentionSweep  time.Duration
	logger          *slog.Logger
}

// WorkerOptions tune the delivery loop. Zero values fall back to defaults.
type WorkerOptions struct {
	Interval        time.Duration
	DispatchTimeout time.Duration
	Retention       time.Duration
	RetentionSweep  time.Duration
}

func NewWorker(store Store, dispatcher *Dispatcher, clock Clock, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = defaultTickInterval
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = defaultDispatchTimeout
	}
	if opts.RetentionSweep <= 0 {
		opts.RetentionSweep = 30 * time.Minute
	}
	return &Worker{
		store:           store,
		dispatcher:      dispatcher,
		clock:           clock,
		interval:        opts.Interval,
		dispatchTimeout: opts.DispatchTimeout,
		retention:       opts.Retention,
		retentionSweep:  opts.RetentionSweep,
		logger:          logger,
	}
}

// Run blocks until ctx is cancelled. Intended to be called with `go`. The
// first delivery check happens immediately so records left over from a
// previous run are flushed without waiting a full interval. An in-flight
// tick always finishes before the loop returns.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Delivery worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	sweep := time.NewTicker(w.retentionSweep)
	defer sweep.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-sweep.C:
			w.purge(ctx)
		case <-ctx.Done():
			w.logger.Info("Delivery worker stopped")
			return
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	sent, failed, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("Delivery check failed", "error", err)
	} else if sent+failed > 0 {
		w.logger.Info("Delivery check", "sent", sent, "failed", failed)
	}
}

// RunOnce performs a single delivery check and reports how many records
// dispatched cleanly vs. with a transport failure. Failed dispatches are
// logged and still consumed — at-most-once, no retry. One bad record never
// aborts the rest of the batch.
func (w *Worker) RunOnce(ctx context.Context) (sent, failed int, err error) {
	now := w.clock.Now()
	claimed, err := w.store.ClaimDue(ctx, now)
	if err != nil {
		return 0, 0, err
	}

	for _, n := range claimed {
		dispatchErr := w.dispatch(ctx, n)

		reason := ""
		if dispatchErr != nil {
			reason = dispatchErr.Error()
			w.logger.Warn("Dispatch failed, record consumed",
				"id", n.ID, "channel", n.Channel, "error", dispatchErr)
			failed++
		} else {
			sent++
		}
		if markErr := w.store.MarkSent(ctx, n.ID, w.clock.Now(), reason); markErr != nil {
			w.logger.Error("Failed to finalize notification", "id", n.ID, "error", markErr)
		}
	}
	return sent, failed, nil
}

func (w *Worker) dispatch(ctx context.Context, n Notification) error {
	dctx, cancel := context.WithTimeout(ctx, w.dispatchTimeout)
	defer cancel()
	return w.dispatcher.Dispatch(dctx, n)
}

func (w *Worker) purge(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	cutoff := w.clock.Now().Add(-w.retention)
	purged, err := w.store.Purge(ctx, cutoff)
	if err != nil {
		w.logger.Warn("Retention sweep failed", "error", err)
		return
	}
	if purged > 0 {
		w.logger.Info("Retention sweep purged records", "count", purged)
	}
}
