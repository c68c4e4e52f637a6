package bus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/event"
)

// Callback receives the data published for one event type.
type Callback func(data any)

// Bus maps event types to subscribers. It also owns the replace flags: once
// a type is flagged, further subscriptions for it are refused, which keeps
// every interceptor installed at most once.
type Bus struct {
	mu       sync.RWMutex
	handlers map[event.Type][]Callback
	flags    map[event.Type]bool
}

func New() *Bus {
	return &Bus{
		handlers: make(map[event.Type][]Callback),
		flags:    make(map[event.Type]bool),
	}
}

// Subscribe registers cb for t. It returns false, without registering, when
// t is already flagged.
func (b *Bus) Subscribe(t event.Type, cb Callback) bool {
	if cb == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flags[t] {
		return false
	}
	b.flags[t] = true
	b.handlers[t] = append(b.handlers[t], cb)
	return true
}

// Publish runs every callback for t in registration order. A panicking
// callback is logged and skipped.
func (b *Bus) Publish(t event.Type, data any) {
	b.mu.RLock()
	subs := make([]Callback, len(b.handlers[t]))
	copy(subs, b.handlers[t])
	b.mu.RUnlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Str("type", string(t)).
						Interface("panic", r).
						Msg("websee: subscriber callback failed")
				}
			}()
			cb(data)
		}()
	}
}

// SetFlag sets the replace flag for t.
func (b *Bus) SetFlag(t event.Type, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flags[t] = v
}

// Flag reports the replace flag for t.
func (b *Bus) Flag(t event.Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.flags[t]
}

// Reset drops every subscriber and flag.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[event.Type][]Callback)
	b.flags = make(map[event.Type]bool)
}
