// Package backup defines the outbound ports for mirroring entries to an
// external backup destination.
package backup

import (
	"context"

	"macapuno/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter upserts one entry keyed by its date and returns a
	// backend-specific reference to the written row.
	EntryWriter interface {
		Upsert(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// EntryRemover deletes the mirrored row for a date. Removing an
	// absent date is not an error.
	EntryRemover interface {
		Remove(ctx context.Context, date string) error
	}
)
