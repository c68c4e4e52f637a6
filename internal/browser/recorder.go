package browser

import (
	"sync"
	"time"
)

// EventRecorder is a Recorder fed by the host: Capture forwards mutation
// events, and a ticker emits a full snapshot on every checkout.
type EventRecorder struct {
	mu       sync.Mutex
	emit     func(ev []byte, checkout bool)
	snapshot func() []byte
}

// NewEventRecorder takes the function producing a full-page snapshot.
func NewEventRecorder(snapshot func() []byte) *EventRecorder {
	return &EventRecorder{snapshot: snapshot}
}

func (r *EventRecorder) Record(emit func(ev []byte, checkout bool), checkoutEvery time.Duration) (stop func()) {
	r.mu.Lock()
	r.emit = emit
	r.mu.Unlock()

	done := make(chan struct{})
	if checkoutEvery > 0 {
		go func() {
			ticker := time.NewTicker(checkoutEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.Checkout()
				case <-done:
					return
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			r.mu.Lock()
			r.emit = nil
			r.mu.Unlock()
		})
	}
}

// Capture forwards an incremental event.
func (r *EventRecorder) Capture(ev []byte) {
	r.mu.Lock()
	emit := r.emit
	r.mu.Unlock()
	if emit != nil {
		emit(ev, false)
	}
}

// Checkout emits a full snapshot flagged as a checkout.
func (r *EventRecorder) Checkout() {
	r.mu.Lock()
	emit := r.emit
	r.mu.Unlock()
	if emit == nil {
		return
	}
	var snap []byte
	if r.snapshot != nil {
		snap = r.snapshot()
	}
	emit(snap, true)
}
