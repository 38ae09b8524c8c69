package history

import (
	"context"
	"sync/atomic"
	"time"

	"scanstation/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStore writes to a primary store and falls back to a secondary when
// the primary errors. The primary is retried after a cooldown.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nano of the last failed/retried primary call
}

const recoveryInterval = time.Minute

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) Append(ctx context.Context, entry models.ScanHistoryEntry) error {
	if s.tryPrimary() {
		err := s.primary.Append(ctx, entry)
		if err == nil {
			s.isDown.Store(false)
			return nil
		}
		s.markDown(err)
	}
	return s.fallback.Append(ctx, entry)
}

func (s *FailoverStore) Recent(ctx context.Context, limit int) ([]models.ScanHistoryEntry, error) {
	if s.tryPrimary() {
		entries, err := s.primary.Recent(ctx, limit)
		if err == nil {
			s.isDown.Store(false)
			return entries, nil
		}
		s.markDown(err)
	}
	return s.fallback.Recent(ctx, limit)
}

// tryPrimary reports whether the primary should be attempted: either it is
// healthy, or the cooldown since the last failure has elapsed.
func (s *FailoverStore) tryPrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	last := time.Unix(0, s.lastCheck.Load())
	if time.Since(last) > recoveryInterval {
		s.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (s *FailoverStore) markDown(err error) {
	s.logger.Error().Err(err).Msg("primary history store failed, falling back to memory")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}
