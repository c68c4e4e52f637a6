package browser

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

type (
	OpenFunc func(x *XMLHttpRequest, method, rawURL string)
	SendFunc func(x *XMLHttpRequest, body any)
)

// XHRPrototype holds the methods shared by every XMLHttpRequest.
type XHRPrototype struct {
	Open *Slot[OpenFunc]
	Send *Slot[SendFunc]
}

func newXHRPrototype(client *http.Client) *XHRPrototype {
	return &XHRPrototype{
		Open: NewSlot[OpenFunc](nativeOpen),
		Send: NewSlot[SendFunc](func(x *XMLHttpRequest, body any) {
			nativeSend(client, x, body)
		}),
	}
}

// XMLHttpRequest is a synchronous XHR: Send returns after loadend listeners
// have run.
type XMLHttpRequest struct {
	proto *XHRPrototype

	// ResponseType mirrors xhr.responseType; "", "text" and "json" expose
	// the raw body.
	ResponseType string

	mu        sync.Mutex
	method    string
	url       string
	status    int
	response  string
	listeners map[string][]func(*XMLHttpRequest)
	values    map[any]any
}

// NewXHR creates a request bound to the window's current prototype.
func (w *Window) NewXHR() *XMLHttpRequest {
	return &XMLHttpRequest{proto: w.XHR}
}

func (x *XMLHttpRequest) Open(method, rawURL string) {
	x.proto.Open.Get()(x, method, rawURL)
}

// Send accepts nil, string, []byte or io.Reader bodies.
func (x *XMLHttpRequest) Send(body any) {
	x.proto.Send.Get()(x, body)
}

func (x *XMLHttpRequest) AddEventListener(typ string, fn func(*XMLHttpRequest)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.listeners == nil {
		x.listeners = make(map[string][]func(*XMLHttpRequest))
	}
	x.listeners[typ] = append(x.listeners[typ], fn)
}

func (x *XMLHttpRequest) dispatch(typ string) {
	x.mu.Lock()
	ls := append([]func(*XMLHttpRequest){}, x.listeners[typ]...)
	x.mu.Unlock()
	for _, fn := range ls {
		fn(x)
	}
}

// SetValue attaches arbitrary per-request state.
func (x *XMLHttpRequest) SetValue(key, val any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.values == nil {
		x.values = make(map[any]any)
	}
	x.values[key] = val
}

func (x *XMLHttpRequest) Value(key any) any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.values[key]
}

func (x *XMLHttpRequest) Method() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.method
}

func (x *XMLHttpRequest) URL() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.url
}

// Status is 0 until a response arrives and stays 0 on network failure.
func (x *XMLHttpRequest) Status() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Response is the raw body, or "" for binary response types.
func (x *XMLHttpRequest) Response() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch x.ResponseType {
	case "", "text", "json":
		return x.response
	}
	return ""
}

func nativeOpen(x *XMLHttpRequest, method, rawURL string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.method = strings.ToUpper(method)
	x.url = rawURL
	x.status = 0
	x.response = ""
}

func nativeSend(client *http.Client, x *XMLHttpRequest, body any) {
	req, err := http.NewRequest(x.Method(), x.URL(), bodyReader(body))
	if err == nil {
		var resp *http.Response
		if resp, err = client.Do(req); err == nil {
			var data []byte
			data, err = io.ReadAll(resp.Body)
			resp.Body.Close()
			// a body cut short is a network error: status stays 0
			if err == nil {
				x.mu.Lock()
				x.status = resp.StatusCode
				x.response = string(data)
				x.mu.Unlock()
			}
		}
	}
	if err != nil {
		x.dispatch("error")
	} else {
		x.dispatch("load")
	}
	x.dispatch("loadend")
}

func bodyReader(body any) io.Reader {
	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return strings.NewReader(b)
	case []byte:
		return bytes.NewReader(b)
	case io.Reader:
		return b
	default:
		return nil
	}
}
