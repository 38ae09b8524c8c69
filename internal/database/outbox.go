package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scanstation/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a queued check-in no longer exists, e.g. it was
// concurrently cleared by an operator.
var ErrNotFound = errors.New("queued check-in not found")

// EnqueueCheckin persists a new outbox record for the barcode and returns it.
// A storage error here means the scan was NOT durably queued and must surface
// to the caller.
func (db *DB) EnqueueCheckin(ctx context.Context, barcode string) (*models.QueuedCheckin, error) {
	rec := &models.QueuedCheckin{
		ID:         uuid.NewString(),
		Barcode:    barcode,
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 0,
		MaxRetries: db.maxRetries,
	}

	query := `INSERT INTO outbox (id, barcode, enqueued_at, retry_count, max_retries)
              VALUES (?, ?, ?, ?, ?)`
	_, err := db.db.ExecContext(ctx, query,
		rec.ID,
		rec.Barcode,
		rec.EnqueuedAt,
		rec.RetryCount,
		rec.MaxRetries,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue check-in: %w", err)
	}

	return rec, nil
}

// ListQueued returns every outbox record ordered by enqueue time.
func (db *DB) ListQueued(ctx context.Context) ([]models.QueuedCheckin, error) {
	query := `SELECT id, barcode, enqueued_at, retry_count, max_retries
              FROM outbox ORDER BY enqueued_at ASC`
	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued check-ins: %w", err)
	}
	defer rows.Close()

	var records []models.QueuedCheckin
	for rows.Next() {
		var rec models.QueuedCheckin
		err := rows.Scan(&rec.ID, &rec.Barcode, &rec.EnqueuedAt, &rec.RetryCount, &rec.MaxRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued check-in: %w", err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// RemoveQueued deletes one record. Removing an id that does not exist is not
// an error.
func (db *DB) RemoveQueued(ctx context.Context, id string) error {
	query := `DELETE FROM outbox WHERE id = ?`
	if _, err := db.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to remove queued check-in: %w", err)
	}
	return nil
}

// UpdateRetryCount sets retry_count for a record. Returns ErrNotFound when the
// record has disappeared under us.
func (db *DB) UpdateRetryCount(ctx context.Context, id string, retryCount int) error {
	query := `UPDATE outbox SET retry_count = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, retryCount, id)
	if err != nil {
		return fmt.Errorf("failed to update retry count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountQueued returns the number of pending records for UI badges.
func (db *DB) CountQueued(ctx context.Context) (int, error) {
	var count int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queued check-ins: %w", err)
	}
	return count, nil
}

// ClearQueued deletes every outbox record. Operator action, irreversible.
func (db *DB) ClearQueued(ctx context.Context) (int, error) {
	result, err := db.db.ExecContext(ctx, `DELETE FROM outbox`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear outbox: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}
