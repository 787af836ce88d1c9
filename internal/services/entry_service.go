// Package services orchestrates entry operations across the store and
// the AMQP event feed.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"macapuno/internal/amqp"
	"macapuno/internal/core"
	"macapuno/internal/store"
)

// EventPublisher publishes entry events for the backup worker. A nil
// publisher disables the feed; the worker's pending sweep still catches
// up from the store.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, msg *amqp.EntryEventMessage) error
}

// EntryService owns the write path: earnings are always derived from the
// configured rate here, never trusted from the caller.
type EntryService struct {
	store     *store.EntryStore
	publisher EventPublisher
}

func NewEntryService(entries *store.EntryStore, publisher EventPublisher) *EntryService {
	return &EntryService{store: entries, publisher: publisher}
}

// SaveEntry upserts the entry for date with the given unit count and
// publishes a change event. Earnings come from the current rate.
func (s *EntryService) SaveEntry(ctx context.Context, date string, unitCount int) (core.Entry, error) {
	if !core.IsValidCount(float64(unitCount)) {
		return core.Entry{}, fmt.Errorf("%w: unit count %d exceeds %d", store.ErrInvalidEntry, unitCount, core.MaxUnitCount)
	}
	rate := s.store.Settings(ctx).Rate()
	entry := core.Entry{
		Date:      date,
		UnitCount: unitCount,
		Earnings:  rate.Earnings(unitCount),
	}
	if err := s.store.Save(ctx, entry); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	saved, _ := s.store.GetByDate(ctx, date)
	s.publishChanged(ctx, saved)
	return saved, nil
}

// UpdateEntry merges a partial update into the entry for date. When the
// patch changes the unit count without pinning earnings, earnings are
// re-derived from the current rate.
func (s *EntryService) UpdateEntry(ctx context.Context, date string, patch core.EntryPatch) (core.Entry, error) {
	if patch.UnitCount != nil && !core.IsValidCount(float64(*patch.UnitCount)) {
		return core.Entry{}, fmt.Errorf("%w: unit count %d exceeds %d", store.ErrInvalidEntry, *patch.UnitCount, core.MaxUnitCount)
	}
	if patch.UnitCount != nil && patch.Earnings == nil {
		rate := s.store.Settings(ctx).Rate()
		earnings := rate.Earnings(*patch.UnitCount)
		patch.Earnings = &earnings
	}
	if err := s.store.Update(ctx, date, patch); err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	updated, _ := s.store.GetByDate(ctx, date)
	s.publishChanged(ctx, updated)
	return updated, nil
}

// DeleteEntry removes the entry for date and publishes a delete event.
func (s *EntryService) DeleteEntry(ctx context.Context, date string) error {
	if err := s.store.Delete(ctx, date); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.publishDeleted(ctx, date)
	return nil
}

// Entries returns the collection ordered by date, newest first.
func (s *EntryService) Entries(ctx context.Context) []core.Entry {
	return s.store.GetSorted(ctx, false)
}

// Entry returns the entry for one date.
func (s *EntryService) Entry(ctx context.Context, date string) (core.Entry, bool) {
	return s.store.GetByDate(ctx, date)
}

// Settings returns the current settings.
func (s *EntryService) Settings(ctx context.Context) core.Settings {
	return s.store.Settings(ctx)
}

// UpdateSettings merges a settings patch.
func (s *EntryService) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	if err := s.store.SaveSettings(ctx, patch); err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s.store.Settings(ctx), nil
}

// Export serializes the full collection and settings.
func (s *EntryService) Export(ctx context.Context) ([]byte, error) {
	return s.store.Export(ctx)
}

// Import replaces the collection from a snapshot. No per-entry events
// are published; the worker's pending sweep picks up the restamped
// entries.
func (s *EntryService) Import(ctx context.Context, data []byte) (int, error) {
	return s.store.Import(ctx, data)
}

// Summary is the aggregate view computed on demand from the collection.
type Summary struct {
	TotalEarnings   float64 `json:"totalEarnings"`
	WeeklyEarnings  float64 `json:"weeklyEarnings"`
	MonthlyEarnings float64 `json:"monthlyEarnings"`
	DailyAverage    int     `json:"dailyAverage"`
	WorkStreak      int     `json:"workStreak"`
	EntryCount      int     `json:"entryCount"`
	MonthCount      int     `json:"monthCount"`
}

// Summarize computes all aggregates relative to the reference date.
// Nothing is cached; every call reads the store.
func (s *EntryService) Summarize(ctx context.Context, ref time.Time) Summary {
	entries := s.store.GetAll(ctx)
	return Summary{
		TotalEarnings:   core.TotalEarnings(entries),
		WeeklyEarnings:  core.WeeklyEarnings(entries, ref),
		MonthlyEarnings: core.MonthlyEarnings(entries, ref),
		DailyAverage:    core.DailyAverage(entries),
		WorkStreak:      core.WorkStreak(entries),
		EntryCount:      len(entries),
		MonthCount:      core.DistinctMonthsCount(entries),
	}
}

// Months returns the distinct months present in the collection, oldest
// first.
func (s *EntryService) Months(ctx context.Context) core.MonthIndex {
	return core.NewMonthIndex(s.store.GetAll(ctx))
}

// MonthEntries returns the month's entries plus their total.
func (s *EntryService) MonthEntries(ctx context.Context, m core.Month) ([]core.Entry, float64) {
	entries := core.EntriesForMonth(s.store.GetAll(ctx), m.Ref())
	return entries, core.MonthlyEarnings(entries, m.Ref())
}

func (s *EntryService) publishChanged(ctx context.Context, e core.Entry) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewEntryChangedMessage(e.Date, e.LastModified)
	if err := s.publisher.PublishEntryEvent(ctx, msg); err != nil {
		// The entry is saved locally; the pending sweep recovers it.
		slog.ErrorContext(ctx, "Failed to publish change event", "date", e.Date, "error", err)
	}
}

func (s *EntryService) publishDeleted(ctx context.Context, date string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewEntryDeletedMessage(date)
	if err := s.publisher.PublishEntryEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete event", "date", date, "error", err)
	}
}

// Close closes the publisher when it owns a connection.
func (s *EntryService) Close() error {
	if closer, ok := s.publisher.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close entry service: %w", err)
		}
	}
	return nil
}
