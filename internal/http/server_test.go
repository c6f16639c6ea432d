package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/analytics"
	"registro/internal/core"
	"registro/internal/ledger"
	"registro/internal/ledger/memory"
)

type recordedPublish struct {
	ledgerID string
	seq      uint64
}

type fakePublisher struct {
	published []recordedPublish
}

func (f *fakePublisher) PublishLedgerChanged(_ context.Context, ledgerID string, seq uint64) error {
	f.published = append(f.published, recordedPublish{ledgerID: ledgerID, seq: seq})
	return nil
}

func newTestServer(t *testing.T) (*Server, *memory.Store, *fakePublisher) {
	t.Helper()
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	pub := &fakePublisher{}
	srv := NewServer(":0", store, pub, 6, time.Minute)
	return srv, store, pub
}

func seedEntry(t *testing.T, store *memory.Store, date string, kind core.EntryType, amount int64, category string) {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	_, err = store.CreateEntry(context.Background(), "casa", core.Entry{
		Date:       d,
		Type:       kind,
		Amount:     core.Money{Units: amount},
		Category:   category,
		RecordedBy: "user-1",
	})
	require.NoError(t, err)
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateEntry(t *testing.T) {
	srv, store, pub := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/ledgers/casa/entries", `{
		"date": "2024-03-05",
		"type": "expense",
		"amount": 15000,
		"category": "Spesa",
		"paymentMethod": "carta",
		"memo": "settimanale",
		"recordedBy": "anna"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])

	entries, seq, err := store.Snapshot(context.Background(), "casa")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, recordedPublish{ledgerID: "casa", seq: seq}, pub.published[0])
}

// snapshotFailStore fails every snapshot read while writes keep working.
type snapshotFailStore struct {
	*memory.Store
}

func (s *snapshotFailStore) Snapshot(context.Context, string) ([]core.Entry, uint64, error) {
	return nil, 0, ledger.ErrStoreUnavailable
}

func TestCreateEntrySkipsPublishWhenSnapshotFails(t *testing.T) {
	store := memory.New()
	store.CreateLedger("casa", "Casa")
	pub := &fakePublisher{}
	srv := NewServer(":0", &snapshotFailStore{Store: store}, pub, 6, time.Minute)

	rec := doRequest(srv, http.MethodPost, "/ledgers/casa/entries",
		`{"date":"2024-03-05","type":"expense","amount":100,"category":"Spesa","recordedBy":"anna"}`)

	// The entry is persisted and acknowledged even when the follow-up
	// snapshot read for fan-out fails.
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, pub.published)

	entries, _, err := store.Snapshot(context.Background(), "casa")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateEntryRejectsInvalidAmount(t *testing.T) {
	srv, _, pub := newTestServer(t)

	for _, amount := range []string{`0`, `-5`, `12.34`} {
		rec := doRequest(srv, http.MethodPost, "/ledgers/casa/entries",
			`{"date":"2024-03-05","type":"expense","amount":`+amount+`,"category":"Spesa","recordedBy":"anna"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "amount %s", amount)
	}
	assert.Empty(t, pub.published, "rejected entries must not be announced")
}

func TestCreateEntryRejectsPaymentMethodOnIncome(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/ledgers/casa/entries",
		`{"date":"2024-03-05","type":"income","amount":100,"category":"Stipendio","paymentMethod":"carta","recordedBy":"anna"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateEntryUnknownLedger(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/ledgers/nope/entries",
		`{"date":"2024-03-05","type":"expense","amount":100,"category":"Spesa","recordedBy":"anna"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedEntry(t, store, "2024-03-05", core.Expense, 15000, "Food")
	seedEntry(t, store, "2024-03-10", core.Income, 500000, "Salary")
	seedEntry(t, store, "2024-02-20", core.Expense, 8000, "Food")

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/summary?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var s analytics.MonthSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(500000), s.TotalIncome)
	assert.Equal(t, int64(15000), s.TotalExpense)
	assert.Equal(t, int64(485000), s.NetBalance)
	require.Len(t, s.ByCategory, 1)
	assert.Equal(t, "Food", s.ByCategory[0].Category)
}

func TestSummaryEndpointBadMonth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/summary?month=marzo", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedEntry(t, store, "2024-02-20", core.Expense, 8000, "Food")
	seedEntry(t, store, "2024-03-05", core.Expense, 15000, "Food")
	seedEntry(t, store, "2024-03-10", core.Income, 500000, "Salary")

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/trend?months=3&anchor=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var points []analytics.TrendPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 3)
	assert.Equal(t, core.YearMonth{Year: 2024, Month: 1}, points[0].Month)
	assert.Equal(t, int64(8000), points[1].Expense)
	assert.Equal(t, int64(500000), points[2].Income)
}

func TestTrendEndpointBadWindow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, months := range []string{"0", "61", "abc"} {
		rec := doRequest(srv, http.MethodGet, "/ledgers/casa/trend?months="+months, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "months=%s", months)
	}
}

func TestListEntriesEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedEntry(t, store, "2024-03-05", core.Expense, 15000, "Food")
	seedEntry(t, store, "2024-03-10", core.Income, 500000, "Salary")
	seedEntry(t, store, "2024-02-20", core.Expense, 8000, "Rent")

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/entries?month=2024-03&type=expense", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entries []entryPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Food", entries[0].Category)
	assert.Equal(t, int64(15000), entries[0].Amount)
}

func TestListEntriesSortedByDateDesc(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedEntry(t, store, "2024-03-05", core.Expense, 1, "Old")
	seedEntry(t, store, "2024-03-20", core.Expense, 2, "New")

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []entryPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "New", entries[0].Category)
	assert.Equal(t, "Old", entries[1].Category)
}

func TestExportEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedEntry(t, store, "2024-03-05", core.Expense, 15000, "Food")

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/export?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Casa_2024-03.csv"`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF"))
	assert.Contains(t, rec.Body.String(), `"Food"`)
}

func TestExportEndpointRefusesEmptySet(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/ledgers/casa/export?month=2024-03", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "nothing to export")
}

func TestEndpointsUnknownLedger(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, target := range []string{
		"/ledgers/nope/summary",
		"/ledgers/nope/trend",
		"/ledgers/nope/entries",
		"/ledgers/nope/export",
	} {
		rec := doRequest(srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, doRequest(srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(srv, http.MethodGet, "/readyz", "").Code)
}
