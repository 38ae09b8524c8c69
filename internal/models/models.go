package models

import "time"

// QueuedCheckin is one deferred check-in attempt held in the outbox until it
// can be delivered to the check-in server.
type QueuedCheckin struct {
	ID         string    `json:"id"`
	Barcode    string    `json:"barcode"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
}

// Exhausted reports whether the record has used up its retry budget. Exhausted
// records stay in the outbox until an operator clears them or a later delivery
// succeeds.
func (q QueuedCheckin) Exhausted() bool {
	return q.RetryCount >= q.MaxRetries
}

// ScanHistoryEntry is operator feedback for one scan or sync outcome.
type ScanHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Success   bool      `json:"success"`
}

// SyncResult aggregates the outcome of one sync pass over the outbox.
type SyncResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}
