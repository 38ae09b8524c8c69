package history

import (
	"context"
	"sync"

	"scanstation/internal/models"
)

type MemoryStore struct {
	mu      sync.Mutex
	cap     int
	entries []models.ScanHistoryEntry
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = models.HistoryLimit
	}
	return &MemoryStore{cap: capacity}
}

func (s *MemoryStore) Append(ctx context.Context, entry models.ScanHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]models.ScanHistoryEntry{entry}, s.entries...)
	if len(s.entries) > s.cap {
		s.entries = s.entries[:s.cap]
	}
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]models.ScanHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]models.ScanHistoryEntry, limit)
	copy(out, s.entries[:limit])
	return out, nil
}
