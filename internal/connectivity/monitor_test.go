package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"scanstation/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	healthy atomic.Bool
}

func (p *fakeProber) Health(ctx context.Context) error {
	if p.healthy.Load() {
		return nil
	}
	return errors.New("unreachable")
}

func TestMonitorStartsOffline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Second, logging.Nop())
	assert.False(t, m.Online())
}

func TestMarkOnlineFiresCallbackOncePerTransition(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Second, logging.Nop())

	var fired atomic.Int32
	m.OnOnline(func() { fired.Add(1) })

	m.MarkOnline()
	m.MarkOnline()
	m.MarkOnline()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, m.Online())

	// Next transition fires again.
	m.MarkOffline()
	m.MarkOnline()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestMarkOffline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, time.Second, logging.Nop())
	m.MarkOnline()
	require.True(t, m.Online())

	m.MarkOffline()
	assert.False(t, m.Online())
}

func TestRunProbesTransitions(t *testing.T) {
	prober := &fakeProber{}
	m := NewMonitor(prober, 20*time.Millisecond, logging.Nop())

	var regained atomic.Int32
	m.OnOnline(func() { regained.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Unreachable server: stays offline.
	time.Sleep(60 * time.Millisecond)
	assert.False(t, m.Online())
	assert.EqualValues(t, 0, regained.Load())

	prober.healthy.Store(true)
	require.Eventually(t, func() bool { return m.Online() }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return regained.Load() == 1 }, time.Second, 10*time.Millisecond)

	// Staying online must not fire the callback again.
	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 1, regained.Load())
}
