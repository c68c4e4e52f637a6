package browser

import (
	"strings"
	"sync"
)

// Element is the subset of a DOM element the SDK inspects.
type Element struct {
	TagName   string
	ID        string
	ClassName string
	Src       string
	Href      string
	Text      string
}

// LocalName is the lowercase tag name. Resource load failures are told apart
// from script errors by a non-empty local name on the event target.
func (e *Element) LocalName() string {
	if e == nil {
		return ""
	}
	return strings.ToLower(e.TagName)
}

// ScriptError is a thrown script value carrying a stack trace.
type ScriptError struct {
	Name    string
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// Event is dispatched to listeners. Only the fields relevant to Type are set.
type Event struct {
	Type   string
	Target *Element

	// error
	Message  string
	Filename string
	Lineno   int
	Colno    int
	Error    *ScriptError

	// unhandledrejection
	Reason any

	// hashchange
	OldURL string
	NewURL string

	// popstate
	State any
}

// Listener handles a dispatched event.
type Listener func(*Event)

type listener struct {
	fn      Listener
	capture bool
}

// EventTarget is embedded by Window and Document.
type EventTarget struct {
	mu        sync.Mutex
	listeners map[string][]*listener
}

// AddEventListener registers fn and returns a func removing it.
func (t *EventTarget) AddEventListener(typ string, fn Listener, capture bool) (remove func()) {
	l := &listener{fn: fn, capture: capture}

	t.mu.Lock()
	if t.listeners == nil {
		t.listeners = make(map[string][]*listener)
	}
	t.listeners[typ] = append(t.listeners[typ], l)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			kept := t.listeners[typ][:0]
			for _, x := range t.listeners[typ] {
				if x != l {
					kept = append(kept, x)
				}
			}
			t.listeners[typ] = kept
		})
	}
}

// DispatchEvent runs capture listeners first, then bubble listeners, each
// group in registration order.
func (t *EventTarget) DispatchEvent(ev *Event) {
	t.mu.Lock()
	ls := make([]*listener, len(t.listeners[ev.Type]))
	copy(ls, t.listeners[ev.Type])
	t.mu.Unlock()

	for _, l := range ls {
		if l.capture {
			l.fn(ev)
		}
	}
	for _, l := range ls {
		if !l.capture {
			l.fn(ev)
		}
	}
}

// ListenerCount reports how many listeners are registered for typ.
func (t *EventTarget) ListenerCount(typ string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}
