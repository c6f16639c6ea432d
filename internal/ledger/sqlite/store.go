// Package sqlite is the persistent ledger store. It keeps the same
// snapshot semantics as the memory store: every change bumps a per-ledger
// sequence counter and subscribers receive the full replacement
// collection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"registro/internal/core"
	"registro/internal/ledger"
)

type Store struct {
	db      *sql.DB
	queries *queries

	mu      sync.Mutex
	subs    map[string]map[int]chan ledger.SnapshotEvent
	nextSub int
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:      db,
		queries: &queries{db: db},
		subs:    make(map[string]map[int]chan ledger.SnapshotEvent),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateLedger registers a ledger, updating the label if it already
// exists.
func (s *Store) CreateLedger(ctx context.Context, id, label string) error {
	if err := s.queries.insertLedger(ctx, id, label); err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}
	return nil
}

func (s *Store) CreateEntry(ctx context.Context, ledgerID string, e core.Entry) (string, error) {
	ok, err := s.Exists(ctx, ledgerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ledger.ErrLedgerNotFound
	}

	id := uuid.NewString()
	seq, err := s.queries.insertEntry(ctx, entryRow{
		ID:            id,
		LedgerID:      ledgerID,
		Date:          e.Date,
		Type:          string(e.Type),
		Amount:        e.Amount.Units,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Memo:          e.Memo,
		RecordedBy:    e.RecordedBy,
	})
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", id,
		"ledger", ledgerID,
		"type", e.Type,
		"amount", e.Amount.Units,
		"seq", seq)

	s.broadcast(ctx, ledgerID, seq)
	return id, nil
}

func (s *Store) Exists(ctx context.Context, ledgerID string) (bool, error) {
	ok, err := s.queries.ledgerExists(ctx, ledgerID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *Store) Ledger(ctx context.Context, ledgerID string) (ledger.Ledger, error) {
	label, err := s.queries.getLedger(ctx, ledgerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Ledger{}, ledger.ErrLedgerNotFound
	}
	if err != nil {
		return ledger.Ledger{}, fmt.Errorf("get ledger: %w", err)
	}
	return ledger.Ledger{ID: ledgerID, Label: label}, nil
}

func (s *Store) Snapshot(ctx context.Context, ledgerID string) ([]core.Entry, uint64, error) {
	ok, err := s.Exists(ctx, ledgerID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ledger.ErrLedgerNotFound
	}
	entries, err := s.queries.listEntries(ctx, ledgerID)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	seq, err := s.queries.getSeq(ctx, ledgerID)
	if err != nil {
		return nil, 0, fmt.Errorf("get ledger seq: %w", err)
	}
	return entries, seq, nil
}

func (s *Store) Subscribe(ctx context.Context, ledgerID string) (<-chan ledger.SnapshotEvent, func(), error) {
	entries, seq, err := s.Snapshot(ctx, ledgerID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	if s.subs[ledgerID] == nil {
		s.subs[ledgerID] = make(map[int]chan ledger.SnapshotEvent)
	}
	s.nextSub++
	id := s.nextSub
	ch := make(chan ledger.SnapshotEvent, 1)
	s.subs[ledgerID][id] = ch
	ch <- ledger.SnapshotEvent{Seq: seq, Entries: entries}
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[ledgerID], id)
			s.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		release()
	}()
	return ch, release, nil
}

// NotifyChanged re-reads the ledger after an externally signalled change
// and fans the fresh snapshot out to subscribers. Returns the sequence
// number read, so callers can tell whether the write behind the signal is
// visible yet.
func (s *Store) NotifyChanged(ctx context.Context, ledgerID string) (uint64, error) {
	seq, err := s.queries.getSeq(ctx, ledgerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrLedgerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	s.broadcast(ctx, ledgerID, seq)
	return seq, nil
}

// broadcast re-reads the snapshot after a change and fans it out to the
// ledger's subscribers, coalescing to the most recent event per stream.
// A failed read is delivered as an error event; subscribers keep their
// last good views.
func (s *Store) broadcast(ctx context.Context, ledgerID string, seq uint64) {
	s.mu.Lock()
	active := len(s.subs[ledgerID])
	s.mu.Unlock()
	if active == 0 {
		return
	}

	entries, err := s.queries.listEntries(ctx, ledgerID)
	ev := ledger.SnapshotEvent{Seq: seq, Entries: entries}
	if err != nil {
		slog.ErrorContext(ctx, "Snapshot read after change failed", "ledger", ledgerID, "error", err)
		ev = ledger.SnapshotEvent{Seq: seq, Err: fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)}
	}

	// Membership is re-checked under the lock: release deletes before
	// closing, so a channel still in the map is safe to send on.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[ledgerID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

var _ ledger.Store = (*Store)(nil)
