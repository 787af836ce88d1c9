package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"macapuno/internal/core"
)

// SnapshotVersion identifies the export format.
const SnapshotVersion = "1.0"

// ErrEmptySnapshot reports an import whose payload contained no usable
// entries; the existing collection is left untouched.
var ErrEmptySnapshot = errors.New("snapshot contains no valid entries")

// Snapshot is the export/import envelope: the full entry collection plus
// the settings in effect when it was taken.
type Snapshot struct {
	Entries    []core.Entry  `json:"entries"`
	Settings   core.Settings `json:"settings"`
	ExportDate string        `json:"exportDate"`
	Version    string        `json:"version"`
}

// Export serializes the current collection and settings. The entry list
// is never null, so an empty store still round-trips cleanly.
func (s *EntryStore) Export(ctx context.Context) ([]byte, error) {
	if !s.available {
		return nil, ErrStorageUnavailable
	}
	entries := s.GetAll(ctx)
	if entries == nil {
		entries = []core.Entry{}
	}
	snap := Snapshot{
		Entries:    entries,
		Settings:   s.Settings(ctx),
		ExportDate: s.now().UTC().Format(time.RFC3339),
		Version:    SnapshotVersion,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// wireEntry decodes one snapshot entry with explicit field presence so
// records missing required fields can be dropped instead of silently
// zero-filled.
type wireEntry struct {
	Date         *string  `json:"date"`
	UnitCount    *float64 `json:"unitCount"`
	Earnings     *float64 `json:"earnings"`
	LastModified *int64   `json:"lastModified"`
}

func (w wireEntry) toEntry() (core.Entry, bool) {
	if w.Date == nil || w.UnitCount == nil || w.Earnings == nil {
		return core.Entry{}, false
	}
	if *w.UnitCount < 0 || *w.Earnings < 0 {
		return core.Entry{}, false
	}
	// A unit count is a whole number of wrappers; a fractional count
	// marks a corrupt record, not sloppy input to floor.
	if *w.UnitCount != math.Trunc(*w.UnitCount) {
		return core.Entry{}, false
	}
	e := core.Entry{
		Date:      *w.Date,
		UnitCount: int(*w.UnitCount),
		Earnings:  *w.Earnings,
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, false
	}
	return e, true
}

// Import replaces the whole collection with the snapshot's entries.
// Invalid records are dropped and duplicates collapse to the last
// occurrence; imported entries are restamped so downstream consumers see
// them as fresh writes. Settings, when present, merge over the current
// ones. An import with zero usable entries is rejected wholesale.
func (s *EntryStore) Import(ctx context.Context, data []byte) (int, error) {
	if !s.available {
		return 0, ErrStorageUnavailable
	}

	var raw struct {
		Entries  []json.RawMessage `json:"entries"`
		Settings json.RawMessage   `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("decode snapshot: %w", err)
	}

	byDate := make(map[string]core.Entry)
	var order []string
	dropped := 0
	for _, msg := range raw.Entries {
		var w wireEntry
		if err := json.Unmarshal(msg, &w); err != nil {
			dropped++
			continue
		}
		e, ok := w.toEntry()
		if !ok {
			dropped++
			continue
		}
		if _, seen := byDate[e.Date]; !seen {
			order = append(order, e.Date)
		}
		byDate[e.Date] = e
	}
	if len(byDate) == 0 {
		return 0, ErrEmptySnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]core.Entry, 0, len(byDate))
	for _, date := range order {
		e := byDate[date]
		e.LastModified = s.stamp()
		entries = append(entries, e)
	}
	if err := s.writeAll(ctx, entries); err != nil {
		return 0, fmt.Errorf("write imported entries: %w", err)
	}

	if len(raw.Settings) > 0 {
		var patch core.SettingsPatch
		if err := json.Unmarshal(raw.Settings, &patch); err != nil {
			slog.WarnContext(ctx, "Snapshot settings malformed, keeping current settings", "error", err)
		} else if err := s.applySettings(ctx, patch); err != nil {
			slog.WarnContext(ctx, "Applying snapshot settings failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "Snapshot imported", "imported", len(entries), "dropped", dropped)
	return len(entries), nil
}
