// ABOUTME: One-shot deadline for a whole run.
// ABOUTME: Inert unless it fires; firing forces shutdown regardless of outstanding acks.

package master

import (
	"sync/atomic"
	"time"
)

// Watchdog calls its fire function once if not stopped within the deadline.
type Watchdog struct {
	timer *time.Timer
	fired atomic.Bool
}

// NewWatchdog arms a watchdog that calls fire after d.
func NewWatchdog(d time.Duration, fire func()) *Watchdog {
	w := &Watchdog{}
	w.timer = time.AfterFunc(d, func() {
		w.fired.Store(true)
		fire()
	})
	return w
}

// Stop disarms the watchdog. It reports whether the watchdog was still armed.
func (w *Watchdog) Stop() bool {
	return w.timer.Stop()
}

// Fired reports whether the deadline passed.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}
