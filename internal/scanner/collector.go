// Package scanner reassembles the keystroke bursts of a keyboard-wedge
// barcode reader into complete barcodes, independent of UI focus.
package scanner

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// KeyEvent is one raw key from the reader stream.
type KeyEvent struct {
	Rune  rune
	Enter bool
	// ManualInput marks keys typed into the designated manual-entry field;
	// those never belong to a scan.
	ManualInput bool
}

// Collector is a debounced state machine: idle until the first printable rune,
// accumulating while runes keep arriving inside the debounce window, flushed
// on timer expiry or Enter. A flush while a previous scan is still being
// ingested is deferred, not dropped, and never runs concurrently.
type Collector struct {
	debounce time.Duration
	emit     func(barcode string)

	mu      sync.Mutex
	buf     []rune
	timer   *time.Timer
	gen     uint64
	busy    bool
	pending []string
}

func NewCollector(debounce time.Duration, emit func(barcode string)) *Collector {
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Collector{debounce: debounce, emit: emit}
}

// HandleKey feeds one key event into the state machine.
func (c *Collector) HandleKey(ev KeyEvent) {
	if ev.ManualInput {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Every key invalidates outstanding timer callbacks: Stop can return too
	// late when the timer already fired and its callback is waiting on mu.
	c.gen++

	if ev.Enter {
		// Scanners terminate a scan with Enter: flush right away.
		c.stopTimerLocked()
		c.flushLocked()
		return
	}

	if !unicode.IsPrint(ev.Rune) {
		return
	}

	c.buf = append(c.buf, ev.Rune)
	c.stopTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.debounce, func() { c.flushOnTimer(gen) })
}

// Busy reports whether an ingestion is in flight for a completed scan.
func (c *Collector) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Release signals that the in-flight ingestion finished. The next deferred
// scan, if any, is emitted immediately; otherwise the collector goes idle.
// Callers must pair every emitted barcode with exactly one Release, typically
// via defer.
func (c *Collector) Release() {
	c.mu.Lock()
	if len(c.pending) > 0 {
		barcode := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		go c.emit(barcode)
		return
	}
	c.busy = false
	c.mu.Unlock()
}

func (c *Collector) flushOnTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Keys arrived after this timer was armed; a fresh timer is running.
		return
	}
	c.timer = nil
	c.flushLocked()
}

func (c *Collector) flushLocked() {
	barcode := strings.TrimSpace(string(c.buf))
	c.buf = c.buf[:0]
	if barcode == "" {
		return
	}

	if c.busy {
		c.pending = append(c.pending, barcode)
		return
	}

	c.busy = true
	go c.emit(barcode)
}

func (c *Collector) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
