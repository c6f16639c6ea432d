// Package memory is the in-process ledger store used for development and
// tests. It is the reference implementation of the snapshot semantics:
// full copies, monotonic sequence numbers, most-recent-wins delivery.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"registro/internal/core"
	"registro/internal/ledger"
)

type Store struct {
	mu      sync.Mutex
	ledgers map[string]*ledgerState
	nextSub int
}

type ledgerState struct {
	label   string
	seq     uint64
	entries []core.Entry
	subs    map[int]chan ledger.SnapshotEvent
}

func New() *Store {
	return &Store{ledgers: make(map[string]*ledgerState)}
}

// CreateLedger registers a ledger. Creating an existing ID only updates
// the label.
func (s *Store) CreateLedger(id, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.ledgers[id]; ok {
		st.label = label
		return
	}
	s.ledgers[id] = &ledgerState{
		label: label,
		subs:  make(map[int]chan ledger.SnapshotEvent),
	}
}

// CreateEntry appends the entry, assigns an ID and broadcasts the new
// snapshot to all subscribers.
func (s *Store) CreateEntry(_ context.Context, ledgerID string, e core.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.ledgers[ledgerID]
	if !ok {
		return "", ledger.ErrLedgerNotFound
	}

	e.ID = uuid.NewString()
	st.entries = append(st.entries, e)
	st.seq++

	ev := ledger.SnapshotEvent{Seq: st.seq, Entries: copyEntries(st.entries)}
	for _, ch := range st.subs {
		deliver(ch, ev)
	}
	return e.ID, nil
}

// NotifyChanged re-broadcasts the current snapshot to subscribers and
// returns its sequence number.
func (s *Store) NotifyChanged(_ context.Context, ledgerID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.ledgers[ledgerID]
	if !ok {
		return 0, ledger.ErrLedgerNotFound
	}
	ev := ledger.SnapshotEvent{Seq: st.seq, Entries: copyEntries(st.entries)}
	for _, ch := range st.subs {
		deliver(ch, ev)
	}
	return st.seq, nil
}

func (s *Store) Exists(_ context.Context, ledgerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ledgers[ledgerID]
	return ok, nil
}

func (s *Store) Ledger(_ context.Context, ledgerID string) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ledgers[ledgerID]
	if !ok {
		return ledger.Ledger{}, ledger.ErrLedgerNotFound
	}
	return ledger.Ledger{ID: ledgerID, Label: st.label}, nil
}

func (s *Store) Snapshot(_ context.Context, ledgerID string) ([]core.Entry, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ledgers[ledgerID]
	if !ok {
		return nil, 0, ledger.ErrLedgerNotFound
	}
	return copyEntries(st.entries), st.seq, nil
}

// Subscribe registers a buffered stream holding at most the latest
// snapshot. The initial snapshot is delivered immediately; the release
// func unregisters and closes the stream. Cancelling ctx releases too.
func (s *Store) Subscribe(ctx context.Context, ledgerID string) (<-chan ledger.SnapshotEvent, func(), error) {
	s.mu.Lock()
	st, ok := s.ledgers[ledgerID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, ledger.ErrLedgerNotFound
	}

	s.nextSub++
	id := s.nextSub
	ch := make(chan ledger.SnapshotEvent, 1)
	st.subs[id] = ch
	ch <- ledger.SnapshotEvent{Seq: st.seq, Entries: copyEntries(st.entries)}
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(st.subs, id)
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

var _ ledger.Store = (*Store)(nil)

// deliver coalesces to the most recent event: a slow consumer only ever
// sees the latest snapshot, older buffered ones are dropped.
func deliver(ch chan ledger.SnapshotEvent, ev ledger.SnapshotEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func copyEntries(in []core.Entry) []core.Entry {
	out := make([]core.Entry, len(in))
	copy(out, in)
	return out
}
