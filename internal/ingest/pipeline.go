// Package ingest turns one completed barcode into either an immediate remote
// check-in or a durable outbox entry, and records the operator-facing outcome.
package ingest

import (
	"context"
	"fmt"
	"time"

	"scanstation/internal/checkin"
	"scanstation/internal/database"
	"scanstation/internal/history"
	"scanstation/internal/metrics"
	"scanstation/internal/models"

	"github.com/rs/zerolog"
)

// Sender delivers one barcode to the remote check-in endpoint.
type Sender interface {
	CheckIn(ctx context.Context, barcode string) (*checkin.Result, error)
}

// Connectivity is the advisory reachability state with feedback hooks.
type Connectivity interface {
	Online() bool
	MarkOnline()
	MarkOffline()
}

type Pipeline struct {
	db      *database.DB
	sender  Sender
	conn    Connectivity
	history history.Store
	logger  *zerolog.Logger
}

func NewPipeline(db *database.DB, sender Sender, conn Connectivity, hist history.Store, logger *zerolog.Logger) *Pipeline {
	return &Pipeline{
		db:      db,
		sender:  sender,
		conn:    conn,
		history: hist,
		logger:  logger,
	}
}

// Process handles one barcode. The returned string is the operator message;
// a non-nil error means the scan could not be handled at all (storage failure
// or an unexpected fault) and must surface distinctly from a rejection.
func (p *Pipeline) Process(ctx context.Context, barcode string) (string, error) {
	metrics.IncScan()

	if !p.conn.Online() {
		return p.enqueue(ctx, barcode)
	}

	result, err := p.sender.CheckIn(ctx, barcode)
	switch {
	case err == nil:
		p.conn.MarkOnline()
		label := result.Label()
		p.record(ctx, label, true)
		metrics.IncCheckin(metrics.OutcomeDelivered)
		p.logger.Info().Str("barcode", barcode).Str("label", label).Msg("check-in delivered")
		return label, nil

	case checkin.IsNetworkError(err):
		// The monitor believed we were online but the call never got a
		// decision from the server. A flaky connection must not lose a scan.
		p.conn.MarkOffline()
		p.logger.Warn().Err(err).Str("barcode", barcode).Msg("delivery failed, queueing")
		return p.enqueue(ctx, barcode)

	default:
		rej, ok := checkin.IsRejection(err)
		if !ok {
			// Unexpected fault: propagate as fatal.
			return "", err
		}
		// Definitive rejection: queueing it would only retry a guaranteed
		// failure.
		p.record(ctx, rej.Detail, false)
		metrics.IncCheckin(metrics.OutcomeRejected)
		p.logger.Info().Str("barcode", barcode).Str("detail", rej.Detail).Msg("check-in rejected")
		return rej.Detail, nil
	}
}

func (p *Pipeline) enqueue(ctx context.Context, barcode string) (string, error) {
	rec, err := p.db.EnqueueCheckin(ctx, barcode)
	if err != nil {
		// Storage failures are fatal: the scan was NOT durably queued.
		return "", fmt.Errorf("enqueue check-in: %w", err)
	}

	count, err := p.db.CountQueued(ctx)
	if err != nil {
		return "", fmt.Errorf("count queued check-ins: %w", err)
	}
	metrics.SetOutboxDepth(count)
	metrics.IncCheckin(metrics.OutcomeQueued)

	// The queuing succeeded even though the check-in itself is still pending.
	msg := fmt.Sprintf("Offline: check-in queued (%d pending)", count)
	p.record(ctx, msg, true)
	p.logger.Info().Str("barcode", barcode).Str("id", rec.ID).Int("pending", count).Msg("check-in queued")
	return msg, nil
}

func (p *Pipeline) record(ctx context.Context, label string, success bool) {
	entry := models.ScanHistoryEntry{
		Timestamp: time.Now().UTC(),
		Label:     label,
		Success:   success,
	}
	if err := p.history.Append(ctx, entry); err != nil {
		p.logger.Warn().Err(err).Msg("failed to append history entry")
	}
}
