package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"macapuno/internal/core"
	"macapuno/internal/log"
	"macapuno/internal/store"
)

const maxImportBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, store.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, store.ErrInvalidEntry):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"entries": s.svc.Entries(r.Context())})
	case http.MethodPost:
		s.handleCreateEntry(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// createEntryRequest accepts the unit count as either a JSON number or a
// string; either way it goes through the same sanitizer as form input.
type createEntryRequest struct {
	Date      string          `json:"date"`
	UnitCount json.RawMessage `json:"unitCount"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !core.IsDate(req.Date) {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	count := core.SanitizeCount(rawToken(req.UnitCount))
	if !core.IsValidCount(float64(count)) {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unitCount must be at most %d", core.MaxUnitCount))
		return
	}
	entry, err := s.svc.SaveEntry(r.Context(), req.Date, count)
	if err != nil {
		slog.ErrorContext(r.Context(), "Save entry failed", "date", req.Date, "error", err)
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// rawToken unwraps a JSON scalar to its text form, stripping quotes from
// strings.
func rawToken(raw json.RawMessage) string {
	tok := strings.TrimSpace(string(raw))
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		return tok[1 : len(tok)-1]
	}
	return tok
}

func (s *Server) handleEntryByDate(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	if !core.IsDate(date) {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, ok := s.svc.Entry(r.Context(), date)
		if !ok {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case http.MethodPatch:
		var patch core.EntryPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if patch.IsZero() {
			writeError(w, http.StatusBadRequest, "patch carries no fields")
			return
		}
		entry, err := s.svc.UpdateEntry(r.Context(), date, patch)
		if err != nil {
			slog.ErrorContext(r.Context(), "Update entry failed", "date", date, "error", err)
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case http.MethodDelete:
		if err := s.svc.DeleteEntry(r.Context(), date); err != nil {
			slog.ErrorContext(r.Context(), "Delete entry failed", "date", date, "error", err)
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PATCH, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStats computes the aggregates relative to an explicit reference
// date (?date=YYYY-MM-DD) or today.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ref := s.now()
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	summary := s.svc.Summarize(r.Context(), ref)
	settings := s.svc.Settings(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"referenceDate": core.DateOf(ref),
		"stats":         summary,
		"rate":          settings.Rate(),
	})
}

type monthSummary struct {
	Month         string  `json:"month"`
	EntryCount    int     `json:"entryCount"`
	TotalEarnings float64 `json:"totalEarnings"`
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	months := s.svc.Months(r.Context())
	out := make([]monthSummary, 0, len(months))
	for _, m := range months {
		entries, total := s.svc.MonthEntries(r.Context(), m)
		out = append(out, monthSummary{
			Month:         m.String(),
			EntryCount:    len(entries),
			TotalEarnings: total,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": out})
}

func (s *Server) handleMonthDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/months/")
	parsed, err := time.Parse("2006-01", raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "month must be YYYY-MM")
		return
	}
	m := core.Month{Year: parsed.Year(), Month: parsed.Month()}

	entries, total := s.svc.MonthEntries(r.Context(), m)
	if entries == nil {
		entries = []core.Entry{}
	}

	// Navigation targets skip months with no entries.
	ix := s.svc.Months(r.Context())
	resp := map[string]any{
		"month":         m.String(),
		"entries":       entries,
		"totalEarnings": total,
	}
	if prev, ok := ix.Prev(m); ok {
		resp["prevMonth"] = prev.String()
	}
	if next, ok := ix.Next(m); ok {
		resp["nextMonth"] = next.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.Settings(r.Context()))

	case http.MethodPatch:
		var patch core.SettingsPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		settings, err := s.svc.UpdateSettings(r.Context(), patch)
		if err != nil {
			slog.ErrorContext(r.Context(), "Update settings failed", "error", err)
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	default:
		w.Header().Set("Allow", "GET, PATCH")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := s.svc.Export(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Export failed", "error", err)
		writeStoreError(w, err)
		return
	}

	filename := "macapuno-backup-" + core.DateOf(s.now()) + ".json"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	n, err := s.svc.Import(r.Context(), data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Import failed",
			log.FieldError, err,
			log.FieldOperation, log.OpImport,
			log.FieldComponent, log.ComponentEntry)
		if errors.Is(err, store.ErrEmptySnapshot) {
			writeError(w, http.StatusUnprocessableEntity, "snapshot contains no valid entries")
			return
		}
		if errors.Is(err, store.ErrStorageUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid snapshot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}
