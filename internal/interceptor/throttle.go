package interceptor

import (
	"sync"
	"time"
)

// throttle runs at most one call per delay window; calls inside the window
// are dropped. A zero delay runs every call.
type throttle struct {
	mu      sync.Mutex
	delay   time.Duration
	blocked bool
	timer   *time.Timer
}

func newThrottle(delay time.Duration) *throttle {
	return &throttle{delay: delay}
}

func (t *throttle) Do(fn func()) {
	if t.delay <= 0 {
		fn()
		return
	}

	t.mu.Lock()
	if t.blocked {
		t.mu.Unlock()
		return
	}
	t.blocked = true
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.blocked = false
		t.mu.Unlock()
	})
	t.mu.Unlock()

	fn()
}

func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
