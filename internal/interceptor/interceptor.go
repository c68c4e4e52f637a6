// Package interceptor wraps the host window's native functions and event
// targets so that every observation is published on the event bus. Wrappers
// always call the original with the same arguments and return its result
// unchanged.
package interceptor

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/bus"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

type Installer struct {
	win      *browser.Window
	bus      *bus.Bus
	opts     *config.Options
	isSDKURL func(string) bool

	mu       sync.Mutex
	restores []func()
	throttle *throttle
	lastHref string
	closed   bool
}

// New creates an installer. isSDKURL identifies the SDK's own uploads so
// they are never observed.
func New(win *browser.Window, b *bus.Bus, opts *config.Options, isSDKURL func(string) bool) *Installer {
	return &Installer{
		win:      win,
		bus:      b,
		opts:     opts,
		isSDKURL: isSDKURL,
		lastHref: win.Href(),
	}
}

// AddReplaceHandler subscribes cb to t and installs the interceptor for t.
// Nothing happens when t is already subscribed or flagged off.
func (in *Installer) AddReplaceHandler(t event.Type, cb bus.Callback) {
	if !in.bus.Subscribe(t, cb) {
		return
	}
	in.replace(t)
}

func (in *Installer) replace(t event.Type) {
	switch t {
	case event.XHR:
		in.replaceXHR()
	case event.Fetch:
		in.replaceFetch()
	case event.Error:
		in.listen(&in.win.EventTarget, "error", event.Error, true)
	case event.UnhandledRejection:
		in.listen(&in.win.EventTarget, "unhandledrejection", event.UnhandledRejection, false)
	case event.Hashchange:
		in.listen(&in.win.EventTarget, "hashchange", event.Hashchange, false)
	case event.History:
		in.replaceHistory()
	case event.Click:
		in.listenClick()
	case event.WhiteScreen:
		in.bus.Publish(event.WhiteScreen, nil)
	}
}

func (in *Installer) track(restore func()) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.restores = append(in.restores, restore)
}

// suppressed reports whether a request must not be observed.
func (in *Installer) suppressed(url string) bool {
	return (in.isSDKURL != nil && in.isSDKURL(url)) || in.opts.FilteredURL(url)
}

func (in *Installer) listen(target *browser.EventTarget, name string, t event.Type, capture bool) {
	in.track(target.AddEventListener(name, func(ev *browser.Event) {
		in.bus.Publish(t, ev)
	}, capture))
}

type xhrKey struct{}

type xhrState struct {
	method string
	url    string
	start  int64
}

func (in *Installer) replaceXHR() {
	proto := in.win.XHR
	if proto == nil {
		return
	}

	in.track(proto.Open.Replace(func(orig browser.OpenFunc) browser.OpenFunc {
		return func(x *browser.XMLHttpRequest, method, rawURL string) {
			x.SetValue(xhrKey{}, &xhrState{
				method: strings.ToUpper(method),
				url:    rawURL,
				start:  event.Now(),
			})
			orig(x, method, rawURL)
		}
	}))

	in.track(proto.Send.Replace(func(orig browser.SendFunc) browser.SendFunc {
		return func(x *browser.XMLHttpRequest, body any) {
			if st, ok := x.Value(xhrKey{}).(*xhrState); ok {
				x.AddEventListener("loadend", func(x *browser.XMLHttpRequest) {
					in.xhrLoadend(x, st, body)
				})
			}
			orig(x, body)
		}
	}))
}

func (in *Installer) xhrLoadend(x *browser.XMLHttpRequest, st *xhrState, body any) {
	if in.suppressed(st.url) {
		return
	}
	call := event.HTTPCall{
		Type:        event.XHR,
		Method:      st.method,
		URL:         st.url,
		Time:        st.start,
		ElapsedTime: event.Now() - st.start,
		Status:      x.Status(),
		RequestData: requestData(body),
	}
	switch x.ResponseType {
	case "", "json", "text":
		if in.opts.HandleHTTPStatus != nil {
			call.Response = decodeBody(x.Response())
		}
	}
	in.bus.Publish(event.XHR, call)
}

func (in *Installer) replaceFetch() {
	if in.win.Fetch == nil || in.win.Fetch.Get() == nil {
		return
	}

	in.track(in.win.Fetch.Replace(func(orig browser.FetchFunc) browser.FetchFunc {
		return func(req *http.Request) (*http.Response, error) {
			start := event.Now()
			method := req.Method
			if method == "" {
				method = http.MethodGet
			}
			target := req.URL.String()
			call := event.HTTPCall{
				Type:        event.Fetch,
				Method:      method,
				URL:         target,
				Time:        start,
				RequestData: fetchRequestData(req),
			}

			resp, err := orig(req)
			call.ElapsedTime = event.Now() - start
			if in.suppressed(target) {
				return resp, err
			}
			if err != nil {
				call.Status = 0
				in.bus.Publish(event.Fetch, call)
				return resp, err
			}

			call.Status = resp.StatusCode
			if in.opts.HandleHTTPStatus == nil || resp.Body == nil {
				in.bus.Publish(event.Fetch, call)
				return resp, nil
			}
			// The classifier needs the body, so the call is published once
			// the caller has consumed it rather than before returning.
			resp.Body = newCapturedBody(resp.Body, func(data []byte, rerr error) {
				if rerr != nil && rerr != io.EOF {
					log.Debug().Err(rerr).Str("url", target).Msg("websee: read fetch response")
				}
				call.Response = decodeBody(string(data))
				in.bus.Publish(event.Fetch, call)
			})
			return resp, nil
		}
	}))
}

func (in *Installer) replaceHistory() {
	h := in.win.History
	if h == nil || h.PushState == nil || h.ReplaceState == nil || in.win.PackagedApp {
		return
	}

	in.track(in.win.OnPopState.Replace(func(orig browser.Listener) browser.Listener {
		return func(ev *browser.Event) {
			to := in.win.Href()
			in.bus.Publish(event.History, event.Route{From: in.swapHref(to), To: to})
			if orig != nil {
				orig(ev)
			}
		}
	}))

	wrap := func(orig browser.StateFunc) browser.StateFunc {
		return func(state any, title, rawURL string) {
			if rawURL != "" {
				in.bus.Publish(event.History, event.Route{From: in.swapHref(rawURL), To: rawURL})
			}
			orig(state, title, rawURL)
		}
	}
	in.track(h.PushState.Replace(wrap))
	in.track(h.ReplaceState.Replace(wrap))
}

// swapHref stores to as the last seen location and returns the previous one.
func (in *Installer) swapHref(to string) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	from := in.lastHref
	in.lastHref = to
	return from
}

func (in *Installer) listenClick() {
	doc := in.win.Document
	if doc == nil {
		return
	}
	th := newThrottle(in.opts.ThrottleDelayTime)
	in.mu.Lock()
	in.throttle = th
	in.mu.Unlock()

	in.track(doc.AddEventListener("click", func(*browser.Event) {
		th.Do(func() {
			in.bus.Publish(event.Click, doc.ActiveElement())
		})
	}, true))
}

// Close removes every listener and restores every replaced function, most
// recent first. Safe to call more than once.
func (in *Installer) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	restores := in.restores
	in.restores = nil
	th := in.throttle
	in.mu.Unlock()

	for i := len(restores) - 1; i >= 0; i-- {
		restores[i]()
	}
	if th != nil {
		th.Stop()
	}
}

func requestData(body any) any {
	switch b := body.(type) {
	case nil:
		return nil
	case []byte:
		return string(b)
	case io.Reader:
		return nil
	default:
		return b
	}
}

func fetchRequestData(req *http.Request) any {
	if req.GetBody == nil {
		return nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return nil
	}
	return string(data)
}

// decodeBody returns the JSON value of body, or body itself when it is not
// JSON.
func decodeBody(body string) any {
	if body == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	return v
}
