package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/amqp"
	"registro/internal/analytics"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/ledger/memory"
	"registro/internal/worker"
)

type sinkCall struct {
	label   string
	summary analytics.MonthSummary
}

type fakeSink struct {
	mu    sync.Mutex
	err   error
	calls []sinkCall
}

func (f *fakeSink) AppendSummary(_ context.Context, label string, s analytics.MonthSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sinkCall{label: label, summary: s})
	return nil
}

func (f *fakeSink) snapshot() []sinkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sinkCall(nil), f.calls...)
}

func seedEntry(t *testing.T, store *memory.Store, kind core.EntryType, amount int64) uint64 {
	t.Helper()
	_, err := store.CreateEntry(context.Background(), "casa", core.Entry{
		Date:       time.Now(),
		Type:       kind,
		Amount:     core.Money{Units: amount},
		Category:   "Spesa",
		RecordedBy: "user-1",
	})
	require.NoError(t, err)
	_, seq, err := store.Snapshot(context.Background(), "casa")
	require.NoError(t, err)
	return seq
}

func TestHandleChangePublishesSummary(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	seedEntry(t, store, core.Income, 500000)
	seq := seedEntry(t, store, core.Expense, 15000)

	sink := &fakeSink{}
	w := worker.New(store, sink, 6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq))
	require.NoError(t, err)

	calls := sink.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "Casa", calls[0].label)
	assert.Equal(t, int64(500000), calls[0].summary.TotalIncome)
	assert.Equal(t, int64(15000), calls[0].summary.TotalExpense)
	assert.Equal(t, int64(485000), calls[0].summary.NetBalance)
}

func TestHandleChangeReusesRefresherAcrossMessages(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	sink := &fakeSink{}
	w := worker.New(store, sink, 6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq := seedEntry(t, store, core.Expense, 100)
	require.NoError(t, w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq)))

	seq = seedEntry(t, store, core.Expense, 50)
	require.NoError(t, w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq)))

	calls := sink.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(100), calls[0].summary.TotalExpense)
	assert.Equal(t, int64(150), calls[1].summary.TotalExpense)
}

func TestHandleChangeRequeuesWhenSnapshotBehind(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	seq := seedEntry(t, store, core.Expense, 100)

	w := worker.New(store, nil, 6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq+5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "behind")
}

func TestHandleChangeUnknownLedger(t *testing.T) {
	w := worker.New(memory.New(), nil, 6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.HandleChange(ctx, amqp.NewLedgerChangedMessage("nope", 1))
	assert.ErrorIs(t, err, ledger.ErrLedgerNotFound)
}

func TestHandleChangeWithoutSinkOnlyLogs(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	seq := seedEntry(t, store, core.Expense, 100)

	w := worker.New(store, nil, 6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.NoError(t, w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq)))
}

func TestHandleChangeSinkErrorRequeues(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	seq := seedEntry(t, store, core.Expense, 100)

	sinkErr := errors.New("spreadsheet unavailable")
	w := worker.New(store, &fakeSink{err: sinkErr}, 6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := w.HandleChange(ctx, amqp.NewLedgerChangedMessage("casa", seq))
	assert.ErrorIs(t, err, sinkErr)
}
