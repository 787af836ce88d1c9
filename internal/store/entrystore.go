// Package store implements the durable entry collection on top of the kv
// substrate: one entry per calendar date, whole-collection
// read-modify-write on every operation, no long-lived cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"macapuno/internal/core"
	"macapuno/internal/kv"
)

const (
	entriesKey  = "macapuno-entries"
	settingsKey = "macapuno-settings"
	probeKey    = "macapuno-probe"
)

var (
	// ErrStorageUnavailable means the startup capability probe failed;
	// every operation short-circuits without attempting I/O.
	ErrStorageUnavailable = errors.New("durable storage unavailable")
	// ErrInvalidEntry rejects writes that fail structural validation.
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrEntryNotFound reports an update or delete against an absent date.
	ErrEntryNotFound = errors.New("entry not found")
)

// EntryStore is the source of truth for entries and settings. The mutex
// serializes the read-modify-write cycle so the single-writer guarantee
// holds even under a concurrent HTTP server.
type EntryStore struct {
	mu        sync.Mutex
	kv        kv.Store
	now       func() time.Time
	available bool
	lastStamp int64
}

// Option configures an EntryStore.
type Option func(*EntryStore)

// WithClock overrides the write-timestamp clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *EntryStore) { s.now = now }
}

// New probes the medium once. A failed probe downgrades every subsequent
// operation to an immediate ErrStorageUnavailable instead of repeated
// I/O failures.
func New(ctx context.Context, store kv.Store, opts ...Option) *EntryStore {
	s := &EntryStore{kv: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.available = s.probe(ctx)
	return s
}

func (s *EntryStore) probe(ctx context.Context) bool {
	if err := s.kv.Set(ctx, probeKey, "ok"); err != nil {
		slog.WarnContext(ctx, "Storage probe failed, entry store disabled", "error", err)
		return false
	}
	if err := s.kv.Delete(ctx, probeKey); err != nil {
		slog.WarnContext(ctx, "Storage probe cleanup failed, entry store disabled", "error", err)
		return false
	}
	return true
}

// Available reports whether the startup probe succeeded.
func (s *EntryStore) Available() bool {
	return s.available
}

// GetAll returns the full entry snapshot. Unavailable storage and
// malformed payloads both degrade to an empty snapshot; the cause is
// logged but never surfaced as an error.
func (s *EntryStore) GetAll(ctx context.Context) []core.Entry {
	if !s.available {
		return nil
	}
	raw, ok, err := s.kv.Get(ctx, entriesKey)
	if err != nil {
		slog.ErrorContext(ctx, "Reading entries failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entries []core.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.ErrorContext(ctx, "Malformed entries payload, treating as empty", "error", err)
		return nil
	}
	return entries
}

// GetByDate looks up the entry for one calendar date.
func (s *EntryStore) GetByDate(ctx context.Context, date string) (core.Entry, bool) {
	for _, e := range s.GetAll(ctx) {
		if e.Date == date {
			return e, true
		}
	}
	return core.Entry{}, false
}

// GetSorted returns the collection ordered by date; newest first unless
// ascending is set. YYYY-MM-DD strings sort chronologically.
func (s *EntryStore) GetSorted(ctx context.Context, ascending bool) []core.Entry {
	entries := s.GetAll(ctx)
	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Date > entries[j].Date
	})
	return entries
}

// ChangedSince returns entries stamped after the watermark, oldest stamp
// first. The backup worker uses it to sweep writes it missed.
func (s *EntryStore) ChangedSince(ctx context.Context, mark int64) []core.Entry {
	var out []core.Entry
	for _, e := range s.GetAll(ctx) {
		if e.LastModified > mark {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModified < out[j].LastModified })
	return out
}

// Save upserts an entry keyed by date: an existing entry for that date is
// merged (incoming fields win), otherwise the entry is appended. Either
// way the write timestamp is bumped.
func (s *EntryStore) Save(ctx context.Context, e core.Entry) error {
	if !s.available {
		return ErrStorageUnavailable
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.GetAll(ctx)
	merged := false
	for i := range entries {
		if entries[i].Date == e.Date {
			entries[i].UnitCount = e.UnitCount
			entries[i].Earnings = e.Earnings
			entries[i].LastModified = s.stamp()
			merged = true
			break
		}
	}
	if !merged {
		e.LastModified = s.stamp()
		entries = append(entries, e)
	}

	if err := s.writeAll(ctx, entries); err != nil {
		slog.ErrorContext(ctx, "Saving entry failed", "date", e.Date, "error", err)
		return err
	}
	return nil
}

// Update merges a partial update into the entry for date. It fails with
// ErrEntryNotFound when no entry exists for that date.
func (s *EntryStore) Update(ctx context.Context, date string, patch core.EntryPatch) error {
	if !s.available {
		return ErrStorageUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.GetAll(ctx)
	for i := range entries {
		if entries[i].Date != date {
			continue
		}
		updated := entries[i]
		patch.Apply(&updated)
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
		updated.LastModified = s.stamp()
		entries[i] = updated
		if err := s.writeAll(ctx, entries); err != nil {
			slog.ErrorContext(ctx, "Updating entry failed", "date", date, "error", err)
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEntryNotFound, date)
}

// Delete removes the entry for date, failing when none exists.
func (s *EntryStore) Delete(ctx context.Context, date string) error {
	if !s.available {
		return ErrStorageUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.GetAll(ctx)
	kept := entries[:0]
	for _, e := range entries {
		if e.Date != date {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, date)
	}
	if err := s.writeAll(ctx, kept); err != nil {
		slog.ErrorContext(ctx, "Deleting entry failed", "date", date, "error", err)
		return err
	}
	return nil
}

// Settings returns the stored settings merged over defaults. Missing or
// malformed settings degrade to defaults.
func (s *EntryStore) Settings(ctx context.Context) core.Settings {
	defaults := core.DefaultSettings()
	if !s.available {
		return defaults
	}
	raw, ok, err := s.kv.Get(ctx, settingsKey)
	if err != nil {
		slog.ErrorContext(ctx, "Reading settings failed", "error", err)
		return defaults
	}
	if !ok {
		return defaults
	}
	merged := defaults
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		slog.ErrorContext(ctx, "Malformed settings payload, using defaults", "error", err)
		return defaults
	}
	return merged
}

// SaveSettings merges the patch into the stored settings. Unrelated
// fields keep their values; the record is never replaced wholesale.
func (s *EntryStore) SaveSettings(ctx context.Context, patch core.SettingsPatch) error {
	if !s.available {
		return ErrStorageUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applySettings(ctx, patch)
}

// applySettings must be called with the mutex held.
func (s *EntryStore) applySettings(ctx context.Context, patch core.SettingsPatch) error {
	settings := s.Settings(ctx)
	patch.Apply(&settings)
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey, string(data)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *EntryStore) writeAll(ctx context.Context, entries []core.Entry) error {
	if entries == nil {
		entries = []core.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := s.kv.Set(ctx, entriesKey, string(data)); err != nil {
		return fmt.Errorf("write entries: %w", err)
	}
	return nil
}

// stamp returns a strictly increasing write timestamp in milliseconds.
// Two writes in the same millisecond still get distinct stamps.
func (s *EntryStore) stamp() int64 {
	ts := s.now().UnixMilli()
	if ts <= s.lastStamp {
		ts = s.lastStamp + 1
	}
	s.lastStamp = ts
	return ts
}
