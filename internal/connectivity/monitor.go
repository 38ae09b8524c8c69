// Package connectivity tracks whether the check-in server is reachable. The
// flag is advisory: it triggers sync attempts, but per-call outcomes are the
// authoritative signal and feed back in through MarkOnline/MarkOffline.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Prober answers whether the remote API responds right now.
type Prober interface {
	Health(ctx context.Context) error
}

type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *zerolog.Logger

	online atomic.Bool

	mu       sync.Mutex
	onOnline []func()
}

func NewMonitor(prober Prober, interval time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// OnOnline registers a callback fired once per offline-to-online transition.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Online returns the current advisory reachability state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// MarkOnline records a confirmed successful call. Fires the transition
// callbacks when the previous state was offline.
func (m *Monitor) MarkOnline() {
	if m.online.Swap(true) {
		return
	}
	m.logger.Info().Msg("connectivity regained")

	m.mu.Lock()
	callbacks := make([]func(), len(m.onOnline))
	copy(callbacks, m.onOnline)
	m.mu.Unlock()

	for _, fn := range callbacks {
		go fn()
	}
}

// MarkOffline records an observed network failure.
func (m *Monitor) MarkOffline() {
	if m.online.Swap(false) {
		m.logger.Warn().Msg("connectivity lost")
	}
}

// Run probes the server until ctx is done. The first probe happens
// immediately so a station that boots with a backlog starts draining at once.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.prober.Health(probeCtx); err != nil {
		m.MarkOffline()
		return
	}
	m.MarkOnline()
}
