// Package worker turns ledger change notifications into published month
// summaries. One view refresher runs per notified ledger; each
// notification pokes the store into re-reading the snapshot, and the
// worker publishes from the refresher's views once they catch up.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"registro/internal/amqp"
	"registro/internal/analytics"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/views"
)

// Store is the ledger access the worker needs: live snapshot
// subscriptions plus a refresh hook for externally signalled changes.
type Store interface {
	ledger.Directory
	ledger.SnapshotSource
	NotifyChanged(ctx context.Context, ledgerID string) (uint64, error)
}

// SummarySink receives the recomputed summaries. Nil disables publishing;
// the worker then only logs.
type SummarySink interface {
	AppendSummary(ctx context.Context, ledgerLabel string, s analytics.MonthSummary) error
}

type Worker struct {
	store       Store
	sink        SummarySink
	trendWindow int

	mu         sync.Mutex
	refreshers map[string]*views.Refresher
}

func New(store Store, sink SummarySink, trendWindow int) *Worker {
	if trendWindow < 1 {
		trendWindow = analytics.DefaultTrendWindow
	}
	return &Worker{
		store:       store,
		sink:        sink,
		trendWindow: trendWindow,
		refreshers:  make(map[string]*views.Refresher),
	}
}

// HandleChange processes one change notification. An error return
// requeues the delivery.
func (w *Worker) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	r, err := w.refresher(ctx, msg.LedgerID)
	if err != nil {
		return err
	}

	seq, err := w.store.NotifyChanged(ctx, msg.LedgerID)
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	if seq < msg.Seq {
		// The local replica has not seen the write yet; requeue and retry
		// once it is visible.
		return fmt.Errorf("snapshot at seq %d behind notification %d", seq, msg.Seq)
	}

	r.SetParams(w.params())
	v, err := awaitSeq(ctx, r, msg.Seq)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recomputed month summary",
		"ledger", msg.LedgerID,
		"seq", v.Seq,
		"total_income", v.Summary.TotalIncome,
		"total_expense", v.Summary.TotalExpense,
		"net_balance", v.Summary.NetBalance)

	if w.sink == nil {
		return nil
	}
	led, err := w.store.Ledger(ctx, msg.LedgerID)
	if err != nil {
		return err
	}
	return w.sink.AppendSummary(ctx, led.Label, v.Summary)
}

func (w *Worker) params() views.Params {
	month := core.CurrentMonth()
	return views.Params{Month: month, TrendWindow: w.trendWindow, TrendAnchor: month}
}

// refresher returns the ledger's running view refresher, starting one on
// first use. ctx is the long-lived consume context; the refresh loop
// stops with it.
func (w *Worker) refresher(ctx context.Context, ledgerID string) (*views.Refresher, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r, ok := w.refreshers[ledgerID]; ok {
		return r, nil
	}

	ok, err := w.store.Exists(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrLedgerNotFound
	}

	r := views.NewRefresher(w.params())
	w.refreshers[ledgerID] = r
	go func() {
		if err := r.Run(ctx, w.store, ledgerID); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "View refresh loop stopped", "ledger", ledgerID, "error", err)
		}
		// Drop the stopped refresher so a later notification restarts it.
		w.mu.Lock()
		delete(w.refreshers, ledgerID)
		w.mu.Unlock()
	}()
	return r, nil
}

// awaitSeq blocks until the refresher has applied a snapshot at least as
// new as seq.
func awaitSeq(ctx context.Context, r *views.Refresher, seq uint64) (views.Views, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		if v, ok := r.Current(); ok && v.Seq >= seq {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return views.Views{}, fmt.Errorf("wait for snapshot %d: %w", seq, ctx.Err())
		case <-tick.C:
		}
	}
}
