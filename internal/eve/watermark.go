package eve

import (
	"sync"
	"time"
)

// Watermark records when the watcher last ingested a line. It only moves
// forward. The zero value is ready to use and reports the zero time.
type Watermark struct {
	mu sync.RWMutex
	t  time.Time
}

// Touch advances the watermark to t when t is later than the current value.
func (w *Watermark) Touch(t time.Time) {
	w.mu.Lock()
	if t.After(w.t) {
		w.t = t
	}
	w.mu.Unlock()
}

// Load returns the current watermark.
func (w *Watermark) Load() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.t
}
