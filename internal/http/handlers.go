package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"registro/internal/analytics"
	"registro/internal/core"
	"registro/internal/export"
	"registro/internal/ledger"
)

type createEntryRequest struct {
	Date          string      `json:"date"` // "2006-01-02"
	Type          string      `json:"type"`
	Amount        json.Number `json:"amount"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Memo          string      `json:"memo"`
	RecordedBy    string      `json:"recordedBy"`
}

type createEntryResponse struct {
	ID string `json:"id"`
}

// handleCreateEntry is the input boundary: everything is validated here,
// before any entry can reach the analytics engines.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	units, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount: must be a positive whole number")
		return
	}

	e := core.Entry{
		Date:          date,
		Type:          core.EntryType(strings.ToLower(strings.TrimSpace(req.Type))),
		Amount:        core.Money{Units: units},
		Category:      sanitizeInput(req.Category),
		PaymentMethod: sanitizeInput(req.PaymentMethod),
		Memo:          sanitizeInput(req.Memo),
		RecordedBy:    sanitizeInput(req.RecordedBy),
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid entry: "+err.Error())
		return
	}

	id, err := s.store.CreateEntry(r.Context(), ledgerID, e)
	if errors.Is(err, ledger.ErrLedgerNotFound) {
		writeError(w, http.StatusNotFound, "ledger not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Entry create error", "error", err, "ledger", ledgerID)
		writeError(w, http.StatusInternalServerError, "could not save entry")
		return
	}

	// Fan-out is best effort; the entry is already persisted.
	if s.publisher != nil {
		_, seq, err := s.store.Snapshot(r.Context(), ledgerID)
		if err != nil {
			slog.WarnContext(r.Context(), "Snapshot read for change publish failed", "error", err, "ledger", ledgerID)
		} else if err := s.publisher.PublishLedgerChanged(r.Context(), ledgerID, seq); err != nil {
			slog.WarnContext(r.Context(), "Change publish failed", "error", err, "ledger", ledgerID)
		}
	}

	writeJSON(w, http.StatusCreated, createEntryResponse{ID: id})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")

	month, err := monthParam(r, "month", core.CurrentMonth())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	entries, seq, ok := s.snapshot(w, r, ledgerID)
	if !ok {
		return
	}

	key := viewKey(ledgerID, seq, "summary", month.String())
	summary, found := s.summaryCache.Get(key)
	if !found {
		summary = analytics.Summarize(entries, month)
		s.summaryCache.Set(key, summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")

	window := s.trendWindow
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 60 {
			writeError(w, http.StatusBadRequest, "invalid months, expected 1-60")
			return
		}
		window = n
	}
	anchor, err := monthParam(r, "anchor", core.CurrentMonth())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid anchor, expected YYYY-MM")
		return
	}

	entries, seq, ok := s.snapshot(w, r, ledgerID)
	if !ok {
		return
	}

	key := viewKey(ledgerID, seq, "trend", anchor.String(), strconv.Itoa(window))
	points, found := s.trendCache.Get(key)
	if !found {
		points = analytics.Trend(entries, window, anchor)
		s.trendCache.Set(key, points)
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")

	filter, err := filterParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, seq, ok := s.snapshot(w, r, ledgerID)
	if !ok {
		return
	}

	key := viewKey(ledgerID, seq, "entries", filterKey(filter))
	matched, found := s.entriesCache.Get(key)
	if !found {
		matched = analytics.Query(entries, filter)
		s.entriesCache.Set(key, matched)
	}
	writeJSON(w, http.StatusOK, entriesPayload(matched))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")

	filter, err := filterParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	led, err := s.store.Ledger(r.Context(), ledgerID)
	if errors.Is(err, ledger.ErrLedgerNotFound) {
		writeError(w, http.StatusNotFound, "ledger not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Ledger lookup error", "error", err, "ledger", ledgerID)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	entries, _, ok := s.snapshot(w, r, ledgerID)
	if !ok {
		return
	}

	matched := analytics.Query(entries, filter)
	doc, err := export.Document(matched)
	if errors.Is(err, export.ErrEmptyExportSet) {
		// Refuse rather than hand out a confusing header-only download.
		writeError(w, http.StatusUnprocessableEntity, "no entries match the current filter, nothing to export")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Export error", "error", err, "ledger", ledgerID)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := export.Filename(led.Label, filter.Month)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// snapshot loads the current entry collection, writing the error response
// itself when the ledger is missing or the store is down.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request, ledgerID string) ([]core.Entry, uint64, bool) {
	entries, seq, err := s.store.Snapshot(r.Context(), ledgerID)
	if errors.Is(err, ledger.ErrLedgerNotFound) {
		writeError(w, http.StatusNotFound, "ledger not found")
		return nil, 0, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot read error", "error", err, "ledger", ledgerID)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return nil, 0, false
	}
	return entries, seq, true
}

func monthParam(r *http.Request, name string, fallback core.YearMonth) (core.YearMonth, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	return core.ParseYearMonth(v)
}

// filterParams reads the optional month/type/category/method query
// parameters. Absent or "all" values impose no constraint.
func filterParams(r *http.Request) (analytics.Filter, error) {
	var f analytics.Filter

	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" && v != "all" {
		ym, err := core.ParseYearMonth(v)
		if err != nil {
			return f, fmt.Errorf("invalid month, expected YYYY-MM")
		}
		f.Month = &ym
	}
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" && v != "all" {
		t := core.EntryType(strings.ToLower(v))
		if !t.Valid() {
			return f, fmt.Errorf("invalid type, expected income or expense")
		}
		f.Type = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" && v != "all" {
		f.Category = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("method")); v != "" && v != "all" {
		f.PaymentMethod = v
	}
	return f, nil
}

type entryPayload struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Category      string `json:"category"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Memo          string `json:"memo,omitempty"`
	RecordedBy    string `json:"recordedBy"`
}

func entriesPayload(entries []core.Entry) []entryPayload {
	out := make([]entryPayload, len(entries))
	for i, e := range entries {
		out[i] = entryPayload{
			ID:            e.ID,
			Date:          e.Date.Format("2006-01-02"),
			Type:          string(e.Type),
			Amount:        e.Amount.Units,
			Category:      e.Category,
			PaymentMethod: e.PaymentMethod,
			Memo:          e.Memo,
			RecordedBy:    e.RecordedBy,
		}
	}
	return out
}

func viewKey(ledgerID string, seq uint64, parts ...string) string {
	key := ledgerID + "|" + strconv.FormatUint(seq, 10)
	for _, p := range parts {
		key += "|" + p
	}
	return key
}

func filterKey(f analytics.Filter) string {
	month := "all"
	if f.Month != nil {
		month = f.Month.String()
	}
	kind := "all"
	if f.Type != nil {
		kind = string(*f.Type)
	}
	return strings.Join([]string{month, kind, f.Category, f.PaymentMethod}, "|")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Response encode error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
