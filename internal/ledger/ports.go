// Package ledger defines the boundary to the entry store. Stores deliver
// full replacement snapshots, never deltas; recompute from the latest
// snapshot is the invalidation strategy.
package ledger

import (
	"context"
	"errors"

	"registro/internal/core"
)

var (
	ErrLedgerNotFound   = errors.New("ledger not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Ledger is the store-level identity of a shared entry collection.
// Membership and ownership live at the store layer.
type Ledger struct {
	ID    string
	Label string
}

// SnapshotEvent carries one full replacement view of a ledger's entries.
// Seq increases monotonically per ledger; consumers drop events whose Seq
// is not newer than the last one applied. Err is set instead of Entries
// when snapshot delivery failed.
type SnapshotEvent struct {
	Seq     uint64
	Entries []core.Entry
	Err     error
}

// Ports for the store adapters.
type (
	EntryWriter interface {
		// CreateEntry persists a validated entry and returns its
		// store-assigned ID.
		CreateEntry(ctx context.Context, ledgerID string, e core.Entry) (string, error)
	}

	Directory interface {
		Exists(ctx context.Context, ledgerID string) (bool, error)
		// Ledger resolves the ledger's display label, used for export
		// filenames.
		Ledger(ctx context.Context, ledgerID string) (Ledger, error)
	}

	SnapshotReader interface {
		// Snapshot returns the current full entry collection and its
		// sequence number.
		Snapshot(ctx context.Context, ledgerID string) ([]core.Entry, uint64, error)
	}

	SnapshotSource interface {
		// Subscribe registers a live snapshot stream for the ledger. The
		// stream delivers the current snapshot immediately and then one
		// event per change, coalescing to the most recent value. The
		// returned release func unregisters the stream and must be called
		// unconditionally when the view is abandoned.
		Subscribe(ctx context.Context, ledgerID string) (<-chan SnapshotEvent, func(), error)
	}

	Store interface {
		EntryWriter
		Directory
		SnapshotReader
		SnapshotSource
	}
)
