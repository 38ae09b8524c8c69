package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(c *Collector, s string) {
	for _, ch := range s {
		c.HandleKey(KeyEvent{Rune: ch})
	}
}

func collect(t *testing.T, debounce time.Duration) (*Collector, chan string) {
	t.Helper()
	emitted := make(chan string, 16)
	c := NewCollector(debounce, func(barcode string) {
		emitted <- barcode
	})
	return c, emitted
}

func waitFor(t *testing.T, ch chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		t.Fatal("timed out waiting for barcode")
		return ""
	}
}

func TestStaleTimerCallbackDoesNotSplitScan(t *testing.T) {
	c, emitted := collect(t, time.Hour)

	// A timer armed for the first rune can fire just as the next rune takes
	// the lock; its callback must not flush the half-read buffer.
	c.HandleKey(KeyEvent{Rune: 'A'})
	c.mu.Lock()
	stale := c.gen
	c.mu.Unlock()

	feed(c, "BC")
	c.flushOnTimer(stale)

	select {
	case barcode := <-emitted:
		t.Fatalf("stale timer emitted %q", barcode)
	case <-time.After(50 * time.Millisecond):
	}

	c.HandleKey(KeyEvent{Enter: true})
	assert.Equal(t, "ABC", waitFor(t, emitted, time.Second))
}

func TestDebounceFlush(t *testing.T) {
	c, emitted := collect(t, 30*time.Millisecond)

	feed(c, "ABC")
	barcode := waitFor(t, emitted, time.Second)
	assert.Equal(t, "ABC", barcode)
	c.Release()

	select {
	case extra := <-emitted:
		t.Fatalf("unexpected second barcode %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEnterFlushesImmediately(t *testing.T) {
	c, emitted := collect(t, time.Hour)

	feed(c, "ABC")
	c.HandleKey(KeyEvent{Enter: true})

	// No debounce wait: the hour-long timer would never fire in this test.
	barcode := waitFor(t, emitted, time.Second)
	assert.Equal(t, "ABC", barcode)
}

func TestDebounceTimerResetsPerKey(t *testing.T) {
	c, emitted := collect(t, 60*time.Millisecond)

	// Gaps under the window must not split the scan.
	for _, ch := range "LONGCODE" {
		c.HandleKey(KeyEvent{Rune: ch})
		time.Sleep(10 * time.Millisecond)
	}

	barcode := waitFor(t, emitted, time.Second)
	assert.Equal(t, "LONGCODE", barcode)
}

func TestEmptyBufferNotEmitted(t *testing.T) {
	c, emitted := collect(t, 20*time.Millisecond)

	c.HandleKey(KeyEvent{Enter: true})
	feed(c, "   ")
	c.HandleKey(KeyEvent{Enter: true})

	select {
	case barcode := <-emitted:
		t.Fatalf("unexpected barcode %q", barcode)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManualInputExcluded(t *testing.T) {
	c, emitted := collect(t, 20*time.Millisecond)

	for _, ch := range "TYPED" {
		c.HandleKey(KeyEvent{Rune: ch, ManualInput: true})
	}
	c.HandleKey(KeyEvent{Enter: true, ManualInput: true})

	select {
	case barcode := <-emitted:
		t.Fatalf("manual typing must not produce a scan, got %q", barcode)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusyDefersWithoutDropping(t *testing.T) {
	c, emitted := collect(t, time.Hour)

	feed(c, "FIRST")
	c.HandleKey(KeyEvent{Enter: true})
	require.Equal(t, "FIRST", waitFor(t, emitted, time.Second))
	require.True(t, c.Busy())

	// Scans completed while ingestion is in flight are deferred.
	feed(c, "SECOND")
	c.HandleKey(KeyEvent{Enter: true})
	feed(c, "THIRD")
	c.HandleKey(KeyEvent{Enter: true})

	select {
	case barcode := <-emitted:
		t.Fatalf("barcode %q emitted while busy", barcode)
	case <-time.After(50 * time.Millisecond):
	}

	c.Release()
	assert.Equal(t, "SECOND", waitFor(t, emitted, time.Second))
	c.Release()
	assert.Equal(t, "THIRD", waitFor(t, emitted, time.Second))
	c.Release()
	assert.False(t, c.Busy())
}
