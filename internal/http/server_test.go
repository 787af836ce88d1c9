package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"macapuno/internal/core"
	kvmem "macapuno/internal/kv/memory"
	"macapuno/internal/services"
	"macapuno/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	entries := store.New(context.Background(), kvmem.New())
	svc := services.NewEntryService(entries, nil)
	clock := func() time.Time { return time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC) }
	srv := NewServer(":0", svc, entries, WithClock(clock))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rr.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateAndGetEntry(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":500}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var entry core.Entry
	decode(t, rr, &entry)
	if entry.UnitCount != 500 || entry.Earnings != 100 {
		t.Errorf("entry = %+v, want count 500 earnings 100", entry)
	}

	rr = do(t, srv, http.MethodGet, "/api/entries/2024-01-15", "")
	if rr.Code != 200 {
		t.Fatalf("get status=%d", rr.Code)
	}
	decode(t, rr, &entry)
	if entry.Date != "2024-01-15" {
		t.Errorf("Date = %q", entry.Date)
	}
}

func TestCreateEntrySanitizesCount(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantCount int
	}{
		{"string count", `{"date":"2024-01-15","unitCount":"250"}`, 250},
		{"fractional count floors", `{"date":"2024-01-16","unitCount":12.9}`, 12},
		{"negative clamps to zero", `{"date":"2024-01-17","unitCount":-3}`, 0},
		{"garbage clamps to zero", `{"date":"2024-01-18","unitCount":"abc"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/entries", tt.body)
			if rr.Code != http.StatusCreated {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			var entry core.Entry
			decode(t, rr, &entry)
			if entry.UnitCount != tt.wantCount {
				t.Errorf("UnitCount = %d, want %d", entry.UnitCount, tt.wantCount)
			}
		})
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{nope`, http.StatusBadRequest},
		{"unknown field", `{"date":"2024-01-15","unitCount":1,"bogus":true}`, http.StatusBadRequest},
		{"bad date", `{"date":"15/01/2024","unitCount":1}`, http.StatusUnprocessableEntity},
		{"count above bound", `{"date":"2024-01-15","unitCount":1000000}`, http.StatusUnprocessableEntity},
		{"string count above bound", `{"date":"2024-01-15","unitCount":"1000000"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/entries", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestCreateEntryUpserts(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":100}`)
	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":250}`)

	rr := do(t, srv, http.MethodGet, "/api/entries", "")
	var resp struct {
		Entries []core.Entry `json:"entries"`
	}
	decode(t, rr, &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(resp.Entries))
	}
	if resp.Entries[0].UnitCount != 250 {
		t.Errorf("UnitCount = %d, want 250", resp.Entries[0].UnitCount)
	}
}

func TestListEntriesNewestFirst(t *testing.T) {
	srv := newTestServer(t)

	for _, d := range []string{"2024-01-15", "2024-03-01", "2023-12-31"} {
		do(t, srv, http.MethodPost, "/api/entries", `{"date":"`+d+`","unitCount":1}`)
	}

	rr := do(t, srv, http.MethodGet, "/api/entries", "")
	var resp struct {
		Entries []core.Entry `json:"entries"`
	}
	decode(t, rr, &resp)
	if resp.Entries[0].Date != "2024-03-01" || resp.Entries[2].Date != "2023-12-31" {
		t.Errorf("unexpected order: %v", resp.Entries)
	}
}

func TestPatchEntry(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":100}`)

	rr := do(t, srv, http.MethodPatch, "/api/entries/2024-01-15", `{"unitCount":300}`)
	if rr.Code != 200 {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	var entry core.Entry
	decode(t, rr, &entry)
	if entry.UnitCount != 300 || entry.Earnings != 60 {
		t.Errorf("entry = %+v, want count 300 earnings 60", entry)
	}

	// Unknown fields are rejected, not silently dropped.
	rr = do(t, srv, http.MethodPatch, "/api/entries/2024-01-15", `{"unitCount":1,"note":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status=%d, want 400", rr.Code)
	}

	// Empty patch is an error.
	rr = do(t, srv, http.MethodPatch, "/api/entries/2024-01-15", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty patch status=%d, want 400", rr.Code)
	}

	// Counts above the input bound are rejected on edit too.
	rr = do(t, srv, http.MethodPatch, "/api/entries/2024-01-15", `{"unitCount":1000000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversized count status=%d, want 422", rr.Code)
	}

	rr = do(t, srv, http.MethodPatch, "/api/entries/2024-02-02", `{"unitCount":1}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing entry status=%d, want 404", rr.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":100}`)

	rr := do(t, srv, http.MethodDelete, "/api/entries/2024-01-15", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, "/api/entries/2024-01-15", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d, want 404", rr.Code)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)

	for date, count := range map[string]int{
		"2024-01-15": 100,
		"2024-01-16": 200,
		"2024-01-17": 150,
		"2023-12-31": 50,
	} {
		body := `{"date":"` + date + `","unitCount":` + jsonInt(count) + `}`
		if rr := do(t, srv, http.MethodPost, "/api/entries", body); rr.Code != http.StatusCreated {
			t.Fatalf("create %s status=%d", date, rr.Code)
		}
	}

	// Server clock is frozen at 2024-01-17.
	rr := do(t, srv, http.MethodGet, "/api/stats", "")
	if rr.Code != 200 {
		t.Fatalf("stats status=%d", rr.Code)
	}
	var resp struct {
		ReferenceDate string           `json:"referenceDate"`
		Stats         services.Summary `json:"stats"`
		Rate          core.Rate        `json:"rate"`
	}
	decode(t, rr, &resp)
	if resp.ReferenceDate != "2024-01-17" {
		t.Errorf("ReferenceDate = %q", resp.ReferenceDate)
	}
	if resp.Stats.TotalEarnings != 100 || resp.Stats.WeeklyEarnings != 90 || resp.Stats.WorkStreak != 3 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if resp.Rate.PerUnit != core.DefaultRatePerUnit {
		t.Errorf("rate = %+v", resp.Rate)
	}

	// Explicit reference date narrows the window.
	rr = do(t, srv, http.MethodGet, "/api/stats?date=2023-12-31", "")
	decode(t, rr, &resp)
	if resp.Stats.MonthlyEarnings != 10 {
		t.Errorf("MonthlyEarnings for Dec 2023 = %v, want 10", resp.Stats.MonthlyEarnings)
	}

	rr = do(t, srv, http.MethodGet, "/api/stats?date=bogus", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus date status=%d, want 422", rr.Code)
	}
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestMonths(t *testing.T) {
	srv := newTestServer(t)

	for _, d := range []string{"2024-01-15", "2024-01-20", "2024-03-01"} {
		do(t, srv, http.MethodPost, "/api/entries", `{"date":"`+d+`","unitCount":100}`)
	}

	rr := do(t, srv, http.MethodGet, "/api/months", "")
	var resp struct {
		Months []monthSummary `json:"months"`
	}
	decode(t, rr, &resp)
	if len(resp.Months) != 2 {
		t.Fatalf("len(months) = %d, want 2", len(resp.Months))
	}
	if resp.Months[0].Month != "2024-01" || resp.Months[0].EntryCount != 2 || resp.Months[0].TotalEarnings != 40 {
		t.Errorf("months[0] = %+v", resp.Months[0])
	}

	rr = do(t, srv, http.MethodGet, "/api/months/2024-01", "")
	var detail struct {
		Month         string       `json:"month"`
		Entries       []core.Entry `json:"entries"`
		TotalEarnings float64      `json:"totalEarnings"`
		PrevMonth     string       `json:"prevMonth"`
		NextMonth     string       `json:"nextMonth"`
	}
	decode(t, rr, &detail)
	if detail.Month != "2024-01" || len(detail.Entries) != 2 || detail.TotalEarnings != 40 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.PrevMonth != "" || detail.NextMonth != "2024-03" {
		t.Errorf("navigation = prev %q next %q, want no prev and next 2024-03", detail.PrevMonth, detail.NextMonth)
	}

	rr = do(t, srv, http.MethodGet, "/api/months/January", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status=%d, want 422", rr.Code)
	}
}

func TestSettings(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/settings", "")
	var settings core.Settings
	decode(t, rr, &settings)
	if settings != core.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", settings)
	}

	rr = do(t, srv, http.MethodPatch, "/api/settings", `{"theme":"dark","ratePerUnit":0.25}`)
	if rr.Code != 200 {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	decode(t, rr, &settings)
	if settings.Theme != "dark" || settings.RatePerUnit != 0.25 {
		t.Errorf("settings = %+v", settings)
	}
	if settings.Currency != "PHP" {
		t.Errorf("Currency = %q, want untouched PHP", settings.Currency)
	}

	rr = do(t, srv, http.MethodPatch, "/api/settings", `{"volume":11}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status=%d, want 400", rr.Code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-15","unitCount":100}`)
	do(t, srv, http.MethodPost, "/api/entries", `{"date":"2024-01-16","unitCount":250}`)

	rr := do(t, srv, http.MethodGet, "/api/export", "")
	if rr.Code != 200 {
		t.Fatalf("export status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "macapuno-backup-2024-01-17.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported := rr.Body.String()

	other := newTestServer(t)
	rr = do(t, other, http.MethodPost, "/api/import", exported)
	if rr.Code != 200 {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Imported int `json:"imported"`
	}
	decode(t, rr, &resp)
	if resp.Imported != 2 {
		t.Errorf("imported = %d, want 2", resp.Imported)
	}

	rr = do(t, other, http.MethodGet, "/api/entries/2024-01-16", "")
	if rr.Code != 200 {
		t.Fatalf("get after import status=%d", rr.Code)
	}
}

func TestImportRejectsEmptySnapshot(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/import", `{"entries":[]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status=%d, want 422", rr.Code)
	}
	rr = do(t, srv, http.MethodPost, "/api/import", `{nope`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed status=%d, want 400", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodPut, "/api/entries"},
		{http.MethodPost, "/api/stats"},
		{http.MethodDelete, "/api/months"},
		{http.MethodPost, "/api/export"},
		{http.MethodGet, "/api/import"},
	}
	for _, tt := range tests {
		rr := do(t, srv, tt.method, tt.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status=%d, want 405", tt.method, tt.path, rr.Code)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/entries", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
