// Package worker drains the outbox against the remote check-in endpoint.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scanstation/internal/checkin"
	"scanstation/internal/database"
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

// pass is one in-flight drain; concurrent callers wait on done and share the
// result instead of starting a second drain.
type pass struct {
	done   chan struct{}
	result models.SyncResult
	err    error
}

// Engine runs sync passes over the outbox: sequential delivery per record,
// single-flight across triggers.
type Engine struct {
	db       *database.DB
	sender   Sender
	conn     Connectivity
	interval time.Duration
	backoff  BackoffPolicy
	logger   *zerolog.Logger

	mu       sync.Mutex
	inflight *pass

	lastMu     sync.RWMutex
	lastAt     time.Time
	lastResult models.SyncResult
	hasLast    bool
}

func NewEngine(db *database.DB, sender Sender, conn Connectivity, interval time.Duration, logger *zerolog.Logger) *Engine {
	if interval <= 0 {
		interval = models.DefaultSyncInterval
	}
	return &Engine{
		db:       db,
		sender:   sender,
		conn:     conn,
		interval: interval,
		backoff:  BackoffPolicy{InitialDelay: interval, MaxDelay: 10 * time.Minute, BackoffFactor: 2},
		logger:   logger,
	}
}

// Sync runs one pass, or joins the pass already running. Callers that join
// receive the in-flight pass result. A started pass runs to completion over
// the then-current queue snapshot; ctx only bounds the join wait.
func (e *Engine) Sync(ctx context.Context) (models.SyncResult, error) {
	e.mu.Lock()
	if p := e.inflight; p != nil {
		e.mu.Unlock()
		select {
		case <-p.done:
			return p.result, p.err
		case <-ctx.Done():
			return models.SyncResult{}, ctx.Err()
		}
	}

	p := &pass{done: make(chan struct{})}
	e.inflight = p
	e.mu.Unlock()

	// Начатый проход доводится до конца: отмена триггера (обрыв HTTP-запроса
	// оператора) не должна прерывать доставку между CheckIn и RemoveQueued.
	p.result, p.err = e.runPass(context.WithoutCancel(ctx))

	e.mu.Lock()
	e.inflight = nil
	e.mu.Unlock()
	close(p.done)

	metrics.IncSyncPass()
	e.recordLast(p.result)

	return p.result, p.err
}

// Syncing reports whether a pass is currently running.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight != nil
}

// LastPass returns the result and time of the most recent completed pass.
func (e *Engine) LastPass() (models.SyncResult, time.Time, bool) {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.lastResult, e.lastAt, e.hasLast
}

func (e *Engine) recordLast(result models.SyncResult) {
	e.lastMu.Lock()
	e.lastAt = time.Now().UTC()
	e.lastResult = result
	e.hasLast = true
	e.lastMu.Unlock()
}

// runPass drains the then-current snapshot of the outbox. Records are
// processed one at a time so the aggregate counts are exact; the pass runs to
// completion even when some deliveries fail.
func (e *Engine) runPass(ctx context.Context) (models.SyncResult, error) {
	var result models.SyncResult

	if !e.conn.Online() {
		return result, nil
	}

	records, err := e.db.ListQueued(ctx)
	if err != nil {
		return result, fmt.Errorf("list outbox: %w", err)
	}
	result.Total = len(records)
	if result.Total == 0 {
		return result, nil
	}

	e.logger.Info().Int("total", result.Total).Msg("sync pass started")

	for _, rec := range records {
		res, err := e.sender.CheckIn(ctx, rec.Barcode)
		if err == nil {
			if err := e.db.RemoveQueued(ctx, rec.ID); err != nil {
				return result, fmt.Errorf("remove delivered check-in: %w", err)
			}
			result.Success++
			e.conn.MarkOnline()
			e.logger.Info().Str("id", rec.ID).Str("label", res.Label()).Msg("queued check-in delivered")
			continue
		}

		result.Failed++
		if checkin.IsNetworkError(err) {
			e.conn.MarkOffline()
		}

		retries := rec.RetryCount + 1
		if uerr := e.db.UpdateRetryCount(ctx, rec.ID, retries); uerr != nil {
			if errors.Is(uerr, database.ErrNotFound) {
				// Operator cleared the record mid-pass.
				e.logger.Debug().Str("id", rec.ID).Msg("queued check-in vanished during pass")
				continue
			}
			return result, fmt.Errorf("update retry count: %w", uerr)
		}

		if retries >= rec.MaxRetries {
			// Запись остаётся в очереди; оператор решает её судьбу
			e.logger.Warn().Str("id", rec.ID).Str("barcode", rec.Barcode).Int("retries", retries).
				Msg("queued check-in exhausted retries")
		} else {
			e.logger.Warn().Err(err).Str("id", rec.ID).Int("retries", retries).Msg("queued check-in delivery failed")
		}
	}

	if count, err := e.db.CountQueued(ctx); err == nil {
		metrics.SetOutboxDepth(count)
	}

	e.logger.Info().Int("success", result.Success).Int("failed", result.Failed).Int("total", result.Total).
		Msg("sync pass finished")
	return result, nil
}

// Run triggers periodic passes until ctx is done. Consecutive failing passes
// back off exponentially.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info().Dur("interval", e.interval).Msg("sync engine started")
	defer e.logger.Info().Msg("sync engine stopped")

	failures := 0
	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		result, err := e.Sync(ctx)
		if err != nil || (result.Failed > 0 && result.Success == 0) {
			failures++
		} else {
			failures = 0
		}

		delay := e.interval
		if failures > 0 {
			delay = e.backoff.NextDelay(failures)
			if delay < e.interval {
				delay = e.interval
			}
		}
		timer.Reset(delay)
	}
}
