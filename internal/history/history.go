// Package history keeps the short operator-facing feed of recent scan and
// sync outcomes. The feed is transient: the durable record of unresolved
// work is the outbox, not this list.
package history

import (
	"context"

	"scanstation/internal/models"
)

// Store holds the most recent feed entries, newest first.
type Store interface {
	Append(ctx context.Context, entry models.ScanHistoryEntry) error
	Recent(ctx context.Context, limit int) ([]models.ScanHistoryEntry, error)
}
