// Package views drives recomputation of the derived ledger views from the
// snapshot stream. One Refresher serves one active ledger view: it holds
// only the latest delivered snapshot, recomputes every view from scratch
// on each delivery, and keeps the last good result when delivery fails.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"registro/internal/analytics"
	"registro/internal/core"
	"registro/internal/ledger"
)

// Params are the caller-supplied inputs of a recompute: the selected
// summary month, trend window/anchor and the active entry filter.
type Params struct {
	Month       core.YearMonth
	TrendWindow int
	TrendAnchor core.YearMonth
	Filter      analytics.Filter
}

// Views is one consistent set of derived results for a snapshot.
type Views struct {
	Seq     uint64
	Summary analytics.MonthSummary
	Trend   []analytics.TrendPoint
	Entries []core.Entry
}

// Compute derives all views from a snapshot. Pure; calling it twice with
// the same inputs yields deep-equal results.
func Compute(entries []core.Entry, p Params, seq uint64) Views {
	window := p.TrendWindow
	if window < 1 {
		window = analytics.DefaultTrendWindow
	}
	return Views{
		Seq:     seq,
		Summary: analytics.Summarize(entries, p.Month),
		Trend:   analytics.Trend(entries, window, p.TrendAnchor),
		Entries: analytics.Query(entries, p.Filter),
	}
}

type Refresher struct {
	mu       sync.Mutex
	params   Params
	snapshot []core.Entry
	lastSeq  uint64
	current  Views
	ready    bool
	lastErr  error
}

func NewRefresher(params Params) *Refresher {
	return &Refresher{params: params}
}

// Run subscribes to the ledger's snapshot stream and recomputes until ctx
// is cancelled or the stream closes. The subscription is released
// unconditionally on exit; no recompute happens after release.
func (r *Refresher) Run(ctx context.Context, src ledger.SnapshotSource, ledgerID string) error {
	events, release, err := src.Subscribe(ctx, ledgerID)
	if err != nil {
		return fmt.Errorf("subscribe to ledger %s: %w", ledgerID, err)
	}
	defer release()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.apply(ctx, ev)
		}
	}
}

// apply processes one delivered event. Stale snapshots (Seq not newer than
// the last applied one) are discarded: last write wins. Error events keep
// the previous views so consumers see stale-but-available data.
func (r *Refresher) apply(ctx context.Context, ev ledger.SnapshotEvent) {
	if ev.Err != nil {
		r.mu.Lock()
		r.lastErr = ev.Err
		r.mu.Unlock()
		slog.WarnContext(ctx, "Snapshot delivery failed, keeping last views", "error", ev.Err)
		return
	}

	r.mu.Lock()
	if r.ready && ev.Seq <= r.lastSeq {
		r.mu.Unlock()
		slog.DebugContext(ctx, "Discarding stale snapshot", "seq", ev.Seq, "latest", r.lastSeq)
		return
	}
	r.lastSeq = ev.Seq
	r.snapshot = ev.Entries
	params := r.params
	r.mu.Unlock()

	v := Compute(ev.Entries, params, ev.Seq)

	r.mu.Lock()
	// A newer snapshot may have been applied while computing.
	if !r.ready || v.Seq >= r.current.Seq {
		r.current = v
		r.ready = true
		r.lastErr = nil
	}
	r.mu.Unlock()
}

// SetParams changes the caller-supplied inputs and recomputes immediately
// from the held snapshot.
func (r *Refresher) SetParams(p Params) {
	r.mu.Lock()
	r.params = p
	if !r.ready {
		r.mu.Unlock()
		return
	}
	snapshot := r.snapshot
	seq := r.lastSeq
	r.mu.Unlock()

	v := Compute(snapshot, p, seq)
	r.mu.Lock()
	if v.Seq >= r.current.Seq {
		r.current = v
	}
	r.mu.Unlock()
}

// Current returns the latest computed views. ok is false until the first
// snapshot has been applied.
func (r *Refresher) Current() (v Views, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.ready
}

// LastErr reports the most recent delivery failure, cleared by the next
// successful recompute.
func (r *Refresher) LastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
