// Package browser models the host page the SDK instruments. Native functions
// live in Slots so interceptors can wrap and later restore them; the default
// implementations are backed by net/http.
package browser

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// FetchFunc is the signature of the global fetch.
type FetchFunc func(req *http.Request) (*http.Response, error)

// StateFunc is the signature of history.pushState and history.replaceState.
type StateFunc func(state any, title, rawURL string)

// History exposes the replaceable navigation methods.
type History struct {
	PushState    *Slot[StateFunc]
	ReplaceState *Slot[StateFunc]
}

// Config describes the page a Window starts on.
type Config struct {
	Href        string
	UserAgent   string
	InnerWidth  float64
	InnerHeight float64
	PackagedApp bool
	Client      *http.Client
	// IdleCallback may be nil when the host has no idle scheduling.
	IdleCallback func(fn func())
}

// Window is the page global.
type Window struct {
	EventTarget

	mu   sync.Mutex
	href string

	InnerWidth  float64
	InnerHeight float64
	PackagedApp bool

	Fetch      *Slot[FetchFunc]
	XHR        *XHRPrototype
	History    *History
	OnPopState *Slot[Listener]
	Navigator  *Navigator
	Document   *Document

	Performance *Performance
	Recorder    Recorder

	// RequestIdleCallback is nil when unsupported.
	RequestIdleCallback func(fn func())

	client *http.Client
}

func New(cfg Config) *Window {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.InnerWidth == 0 {
		cfg.InnerWidth = 1280
	}
	if cfg.InnerHeight == 0 {
		cfg.InnerHeight = 720
	}
	if cfg.Href == "" {
		cfg.Href = "http://localhost/"
	}

	w := &Window{
		href:                cfg.Href,
		InnerWidth:          cfg.InnerWidth,
		InnerHeight:         cfg.InnerHeight,
		PackagedApp:         cfg.PackagedApp,
		RequestIdleCallback: cfg.IdleCallback,
		Document:            NewDocument(),
		Performance:         NewPerformance(),
		client:              cfg.Client,
	}
	w.Fetch = NewSlot[FetchFunc](cfg.Client.Do)
	w.XHR = newXHRPrototype(cfg.Client)
	w.OnPopState = NewSlot[Listener](nil)
	w.History = &History{
		PushState:    NewSlot[StateFunc](w.navigate),
		ReplaceState: NewSlot[StateFunc](w.navigate),
	}
	w.Navigator = newNavigator(cfg.UserAgent, cfg.Client)
	return w
}

// Href returns the current location.
func (w *Window) Href() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.href
}

// Resolve resolves ref against the current location.
func (w *Window) Resolve(ref string) string {
	base, err := url.Parse(w.Href())
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func (w *Window) navigate(_ any, _ string, rawURL string) {
	if rawURL == "" {
		return
	}
	next := w.Resolve(rawURL)
	w.mu.Lock()
	w.href = next
	w.mu.Unlock()
}

// DoFetch calls whatever fetch is currently installed.
func (w *Window) DoFetch(req *http.Request) (*http.Response, error) {
	return w.Fetch.Get()(req)
}

// PushState calls the installed history.pushState.
func (w *Window) PushState(state any, title, rawURL string) {
	w.History.PushState.Get()(state, title, rawURL)
}

// ReplaceState calls the installed history.replaceState.
func (w *Window) ReplaceState(state any, title, rawURL string) {
	w.History.ReplaceState.Get()(state, title, rawURL)
}

// PopState simulates back/forward navigation to rawURL.
func (w *Window) PopState(rawURL string, state any) {
	w.navigate(state, "", rawURL)
	ev := &Event{Type: "popstate", State: state}
	if fn := w.OnPopState.Get(); fn != nil {
		fn(ev)
	}
	w.DispatchEvent(ev)
}

// SetHash changes the fragment and dispatches hashchange.
func (w *Window) SetHash(hash string) {
	oldURL := w.Href()
	u, err := url.Parse(oldURL)
	if err != nil {
		return
	}
	if len(hash) > 0 && hash[0] == '#' {
		hash = hash[1:]
	}
	u.Fragment = hash

	w.mu.Lock()
	w.href = u.String()
	w.mu.Unlock()

	w.DispatchEvent(&Event{Type: "hashchange", OldURL: oldURL, NewURL: u.String()})
}

// Load marks the document complete and dispatches load.
func (w *Window) Load() {
	w.Document.SetReadyState(ReadyStateComplete)
	w.DispatchEvent(&Event{Type: "load"})
}

// ThrowError dispatches an uncaught script error.
func (w *Window) ThrowError(err *ScriptError, filename string, line, col int) {
	w.DispatchEvent(&Event{
		Type:     "error",
		Message:  err.Error(),
		Filename: filename,
		Lineno:   line,
		Colno:    col,
		Error:    err,
	})
}

// FailResource dispatches a resource load failure for el.
func (w *Window) FailResource(el *Element) {
	w.DispatchEvent(&Event{Type: "error", Target: el})
}

// RejectPromise dispatches an unhandled rejection.
func (w *Window) RejectPromise(reason any) {
	w.DispatchEvent(&Event{Type: "unhandledrejection", Reason: reason})
}

// HTTPClient is the client backing the native network functions.
func (w *Window) HTTPClient() *http.Client {
	return w.client
}
