package interceptor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/bus"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

const sdkDSN = "/report"

func newServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":500}`))
		default:
			w.Write([]byte(`{"code":0,"data":"ok"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newInstaller(t *testing.T, srv *httptest.Server, mutate func(*config.Options)) (*Installer, *browser.Window) {
	opts := config.Default()
	opts.DSN = "http://collector" + sdkDSN
	if mutate != nil {
		mutate(&opts)
	}
	require.NoError(t, opts.Normalize())

	cfg := browser.Config{Href: "http://app.local/home"}
	if srv != nil {
		cfg.Client = srv.Client()
	}
	win := browser.New(cfg)
	in := New(win, bus.New(), &opts, func(u string) bool { return strings.HasSuffix(u, sdkDSN) })
	t.Cleanup(in.Close)
	return in, win
}

func collect[T any](in *Installer, t event.Type) *[]T {
	var got []T
	in.AddReplaceHandler(t, func(data any) {
		got = append(got, data.(T))
	})
	return &got
}

func TestXHR_PublishesCall(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, nil)
	calls := collect[event.HTTPCall](in, event.XHR)

	x := win.NewXHR()
	x.Open("get", srv.URL+"/users")
	x.Send(nil)

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "GET", c.Method)
	assert.Equal(t, srv.URL+"/users", c.URL)
	assert.Equal(t, http.StatusOK, c.Status)
	assert.GreaterOrEqual(t, c.ElapsedTime, int64(0))
	assert.Nil(t, c.Response)
	assert.Equal(t, `{"code":0,"data":"ok"}`, x.Response())
}

func TestXHR_ResponseKeptForClassifier(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, func(o *config.Options) {
		o.HandleHTTPStatus = func(event.HTTPCall) bool { return true }
	})
	calls := collect[event.HTTPCall](in, event.XHR)

	x := win.NewXHR()
	x.Open("POST", srv.URL+"/save")
	x.Send(`{"name":"a"}`)

	require.Len(t, *calls, 1)
	assert.Equal(t, map[string]any{"code": float64(0), "data": "ok"}, (*calls)[0].Response)
	assert.Equal(t, `{"name":"a"}`, (*calls)[0].RequestData)
}

func TestXHR_SuppressedURLs(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, func(o *config.Options) {
		o.FilterXHRURLRegExp = `/health$`
	})
	calls := collect[event.HTTPCall](in, event.XHR)

	for _, path := range []string{"/health", sdkDSN} {
		x := win.NewXHR()
		x.Open("POST", srv.URL+path)
		x.Send(nil)
		assert.Equal(t, http.StatusOK, x.Status())
	}
	assert.Empty(t, *calls)
}

func TestFetch_BodyRestoredForCaller(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, func(o *config.Options) {
		o.HandleHTTPStatus = func(event.HTTPCall) bool { return false }
	})
	calls := collect[event.HTTPCall](in, event.Fetch)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/fail", strings.NewReader("payload"))
	resp, err := win.DoFetch(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, `{"code":500}`, string(body))
	require.Len(t, *calls, 1)
	assert.Equal(t, http.StatusInternalServerError, (*calls)[0].Status)
	assert.Equal(t, "payload", (*calls)[0].RequestData)
	assert.Equal(t, map[string]any{"code": float64(500)}, (*calls)[0].Response)
}

func TestFetch_StreamingBodyNotBuffered(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":`))
		w.(http.Flusher).Flush()
		<-release
		w.Write([]byte(`1}`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	in, win := newInstaller(t, srv, func(o *config.Options) {
		o.HandleHTTPStatus = func(event.HTTPCall) bool { return true }
	})
	var mu sync.Mutex
	var calls []event.HTTPCall
	in.AddReplaceHandler(event.Fetch, func(data any) {
		mu.Lock()
		calls = append(calls, data.(event.HTTPCall))
		mu.Unlock()
	})
	published := func() []event.HTTPCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]event.HTTPCall(nil), calls...)
	}

	returned := make(chan *http.Response, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stream", nil)
		resp, err := win.DoFetch(req)
		if err == nil {
			returned <- resp
		}
	}()

	var resp *http.Response
	select {
	case resp = <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch blocked on an unfinished response body")
	}
	assert.Empty(t, published())

	close(release)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, `{"code":1}`, string(body))
	got := published()
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"code": float64(1)}, got[0].Response)
}

func TestFetch_ClosedUnreadBodyStillPublished(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, func(o *config.Options) {
		o.HandleHTTPStatus = func(event.HTTPCall) bool { return false }
	})
	var mu sync.Mutex
	var calls []event.HTTPCall
	in.AddReplaceHandler(event.Fetch, func(data any) {
		mu.Lock()
		calls = append(calls, data.(event.HTTPCall))
		mu.Unlock()
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/fail", nil)
	resp, err := win.DoFetch(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.StatusInternalServerError, calls[0].Status)
	assert.Equal(t, map[string]any{"code": float64(500)}, calls[0].Response)
}

func TestFetch_ErrorPassesThrough(t *testing.T) {
	in, win := newInstaller(t, nil, nil)
	calls := collect[event.HTTPCall](in, event.Fetch)

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0/x", nil)
	_, err := win.DoFetch(req)

	assert.Error(t, err)
	require.Len(t, *calls, 1)
	assert.Equal(t, 0, (*calls)[0].Status)
}

func TestHistory_PushAndPop(t *testing.T) {
	in, win := newInstaller(t, nil, nil)
	routes := collect[event.Route](in, event.History)
	var popped bool
	restore := win.OnPopState.Replace(func(orig browser.Listener) browser.Listener {
		return func(ev *browser.Event) {
			popped = true
			orig(ev)
		}
	})
	defer restore()

	win.PushState(nil, "", "/list")
	win.PopState("/home", nil)

	require.Len(t, *routes, 2)
	assert.Equal(t, event.Route{From: "http://app.local/home", To: "/list"}, (*routes)[0])
	assert.Equal(t, event.Route{From: "/list", To: "http://app.local/home"}, (*routes)[1])
	assert.True(t, popped)
	assert.Equal(t, "http://app.local/home", win.Href())
}

func TestHistory_SkippedInPackagedApp(t *testing.T) {
	in, win := newInstaller(t, nil, nil)
	win.PackagedApp = true
	routes := collect[event.Route](in, event.History)

	win.PushState(nil, "", "/x")
	assert.Empty(t, *routes)
}

func TestClick_Throttled(t *testing.T) {
	in, win := newInstaller(t, nil, func(o *config.Options) { o.ThrottleDelayTime = time.Hour })
	clicks := collect[*browser.Element](in, event.Click)

	a := &browser.Element{TagName: "A"}
	win.Document.Click(a)
	win.Document.Click(&browser.Element{TagName: "B"})

	require.Len(t, *clicks, 1)
	assert.Same(t, a, (*clicks)[0])
}

func TestWindowListeners(t *testing.T) {
	in, win := newInstaller(t, nil, nil)
	errs := collect[*browser.Event](in, event.Error)
	rejections := collect[*browser.Event](in, event.UnhandledRejection)
	hashes := collect[*browser.Event](in, event.Hashchange)

	win.ThrowError(&browser.ScriptError{Message: "boom"}, "a.js", 1, 2)
	win.FailResource(&browser.Element{TagName: "SCRIPT", Src: "x.js"})
	win.RejectPromise("nope")
	win.SetHash("#a")

	assert.Len(t, *errs, 2)
	assert.Len(t, *rejections, 1)
	assert.Len(t, *hashes, 1)
}

func TestWhiteScreen_PublishesOnce(t *testing.T) {
	in, _ := newInstaller(t, nil, nil)
	var n int
	in.AddReplaceHandler(event.WhiteScreen, func(any) { n++ })
	in.AddReplaceHandler(event.WhiteScreen, func(any) { n += 10 })
	assert.Equal(t, 1, n)
}

func TestClose_RestoresNatives(t *testing.T) {
	srv := newServer(t)
	in, win := newInstaller(t, srv, nil)
	calls := collect[event.HTTPCall](in, event.Fetch)
	errs := collect[*browser.Event](in, event.Error)

	in.Close()
	in.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/a", nil)
	resp, err := win.DoFetch(req)
	require.NoError(t, err)
	resp.Body.Close()
	win.ThrowError(&browser.ScriptError{Message: "x"}, "", 0, 0)

	assert.Empty(t, *calls)
	assert.Empty(t, *errs)
	assert.Zero(t, win.ListenerCount("error"))
}
