package tracking

import (
	"sync"
	"time"
)

// Watchdog fires an idle callback when a trip stops reporting. Every
// accepted sample re-arms the trip's timer; at most one idle notification
// is emitted per silent window, and the next sample arms a fresh window.
type Watchdog struct {
	idleAfter time.Duration
	onIdle    func(tripID, busID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewWatchdog(idleAfter time.Duration, onIdle func(tripID, busID string)) *Watchdog {
	return &Watchdog{
		idleAfter: idleAfter,
		onIdle:    onIdle,
		timers:    make(map[string]*time.Timer),
	}
}

// Touch re-arms the idle timer for tripID.
func (w *Watchdog) Touch(tripID, busID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[tripID]; ok {
		t.Stop()
	}
	w.timers[tripID] = time.AfterFunc(w.idleAfter, func() {
		w.mu.Lock()
		delete(w.timers, tripID)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.onIdle(tripID, busID)
		}
	})
}

// Forget disarms the timer when a trip ends. Ended trips must not emit
// idle notifications.
func (w *Watchdog) Forget(tripID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[tripID]; ok {
		t.Stop()
		delete(w.timers, tripID)
	}
}

// Close disarms everything. Used on shutdown.
func (w *Watchdog) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
