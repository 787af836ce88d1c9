// Package worker mirrors the entry collection to a backup destination,
// driven by AMQP events with a periodic sweep as a safety net.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"macapuno/internal/amqp"
	"macapuno/internal/backup"
	applog "macapuno/internal/log"
	"macapuno/internal/store"
)

// BackupWorker consumes entry events and keeps the backup destination in
// step with the store. The watermark is the highest write stamp known to
// be mirrored; the periodic sweep replays anything stamped after it, so
// lost AMQP messages are recovered rather than fatal.
type BackupWorker struct {
	store     *store.EntryStore
	writer    backup.EntryWriter
	remover   backup.EntryRemover
	batchSize int
	watermark int64
	log       *applog.Logger
}

func NewBackupWorker(entries *store.EntryStore, writer backup.EntryWriter, remover backup.EntryRemover, batchSize int) *BackupWorker {
	return &BackupWorker{
		store:     entries,
		writer:    writer,
		remover:   remover,
		batchSize: batchSize,
		log:       applog.Default(applog.ComponentWorker),
	}
}

// Watermark returns the highest write stamp mirrored so far.
func (w *BackupWorker) Watermark() int64 {
	return atomic.LoadInt64(&w.watermark)
}

// HandleEvent processes one entry event from AMQP.
func (w *BackupWorker) HandleEvent(ctx context.Context, msg *amqp.EntryEventMessage) error {
	switch msg.Type {
	case amqp.EventEntryChanged:
		return w.handleChanged(ctx, msg)
	case amqp.EventEntryDeleted:
		return w.handleDeleted(ctx, msg)
	default:
		return fmt.Errorf("unknown event type %q", msg.Type)
	}
}

func (w *BackupWorker) handleChanged(ctx context.Context, msg *amqp.EntryEventMessage) error {
	w.log.InfoContext(ctx, "Processing change event", applog.FieldDate, msg.Date, "lastModified", msg.LastModified)

	// Fetch the current entry; the event only names the date.
	entry, ok := w.store.GetByDate(ctx, msg.Date)
	if !ok {
		// The entry was deleted after the event was published. Drop the
		// stale mirror row instead of resurrecting it.
		w.log.WarnContext(ctx, "Entry gone from store, removing mirror row", applog.FieldDate, msg.Date)
		if err := w.remover.Remove(ctx, msg.Date); err != nil {
			return fmt.Errorf("remove stale mirror row: %w", err)
		}
		return nil
	}

	ref, err := w.writer.Upsert(ctx, entry)
	if err != nil {
		return fmt.Errorf("mirror entry: %w", err)
	}
	w.advanceWatermark(entry.LastModified)

	w.log.InfoContext(ctx, "Entry mirrored",
		applog.FieldDate, entry.Date,
		applog.FieldMirrorRef, ref,
		applog.FieldUnitCount, entry.UnitCount)
	return nil
}

func (w *BackupWorker) handleDeleted(ctx context.Context, msg *amqp.EntryEventMessage) error {
	w.log.InfoContext(ctx, "Processing delete event", applog.FieldDate, msg.Date)

	if w.remover == nil {
		w.log.WarnContext(ctx, "No remover configured, skipping mirror deletion", applog.FieldDate, msg.Date)
		return nil
	}
	if err := w.remover.Remove(ctx, msg.Date); err != nil {
		return fmt.Errorf("remove mirror row: %w", err)
	}
	return nil
}

// ProcessPending mirrors entries stamped after the watermark, up to the
// batch size. This recovers writes whose events never arrived.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending := w.store.ChangedSince(ctx, w.Watermark())
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > w.batchSize {
		pending = pending[:w.batchSize]
	}

	w.log.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, entry := range pending {
		if _, err := w.writer.Upsert(ctx, entry); err != nil {
			// Stop here so the watermark stays behind the failure and
			// the next sweep retries from it.
			w.log.ErrorContext(ctx, "Failed to mirror pending entry", applog.FieldDate, entry.Date, applog.FieldError, err)
			return fmt.Errorf("mirror pending entry %s: %w", entry.Date, err)
		}
		w.advanceWatermark(entry.LastModified)
	}
	return nil
}

// StartupBackfill mirrors the whole collection once at worker startup,
// recovering from missed events or worker downtime. Individual failures
// are logged and skipped so one bad row cannot block the rest; the
// watermark is held below every failed stamp so the periodic sweep
// retries those rows.
func (w *BackupWorker) StartupBackfill(ctx context.Context) error {
	entries := w.store.GetSorted(ctx, true)
	if len(entries) == 0 {
		w.log.InfoContext(ctx, "No entries to backfill on startup")
		return nil
	}

	w.log.InfoContext(ctx, "Backfilling entries on startup", "count", len(entries))

	// The watermark must stay below every failed stamp, or the pending
	// sweep would never retry that entry.
	var maxMirrored, minFailed int64
	successCount := 0
	errorCount := 0
	for _, entry := range entries {
		if _, err := w.writer.Upsert(ctx, entry); err != nil {
			w.log.ErrorContext(ctx, "Failed to backfill entry", applog.FieldDate, entry.Date, applog.FieldError, err)
			if minFailed == 0 || entry.LastModified < minFailed {
				minFailed = entry.LastModified
			}
			errorCount++
			continue
		}
		if entry.LastModified > maxMirrored {
			maxMirrored = entry.LastModified
		}
		successCount++
	}

	mark := maxMirrored
	if minFailed != 0 && minFailed <= mark {
		mark = minFailed - 1
	}
	w.advanceWatermark(mark)

	w.log.InfoContext(ctx, "Startup backfill completed",
		"total", len(entries),
		"mirrored", successCount,
		"errors", errorCount)
	return nil
}

func (w *BackupWorker) advanceWatermark(stamp int64) {
	for {
		cur := atomic.LoadInt64(&w.watermark)
		if stamp <= cur || atomic.CompareAndSwapInt64(&w.watermark, cur, stamp) {
			return
		}
	}
}
