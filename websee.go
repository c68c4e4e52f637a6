// Package websee is a client-side telemetry SDK. It instruments a host page
// (XHR, fetch, history, DOM and error events), keeps a rolling trail of
// breadcrumbs and reports errors, performance metrics, screen recordings and
// white-screen checks to a collection endpoint.
//
//	opts, err := websee.LoadOptions("websee.yaml")
//	client := websee.Init(*opts, win)
//	defer client.Shutdown()
package websee

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/breadcrumb"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/bus"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/handler"
	"github.com/gosight/gosight/websee/internal/interceptor"
	"github.com/gosight/gosight/websee/internal/plugin"
	"github.com/gosight/gosight/websee/internal/registry"
	"github.com/gosight/gosight/websee/internal/transport"
	"github.com/gosight/gosight/websee/internal/whitescreen"
)

const (
	SDKName    = event.SDKName
	SDKVersion = event.SDKVersion
)

type (
	Options    = config.Options
	Window     = browser.Window
	Breadcrumb = event.Breadcrumb
	Report     = event.Report
	EventType  = event.Type
	Plugin     = plugin.Plugin
)

// LoadOptions reads options from a YAML file.
func LoadOptions(path string) (*Options, error) {
	return config.Load(path)
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return config.Default()
}

// Bool returns a pointer to v, for the Silent* flags of an Options literal.
func Bool(v bool) *bool {
	return config.Bool(v)
}

// Client is one initialised SDK instance bound to a window.
type Client struct {
	enabled bool

	opts      *config.Options
	win       *browser.Window
	reg       *registry.Registry
	crumbs    *breadcrumb.Buffer
	bus       *bus.Bus
	transport *transport.Transport
	handlers  *handler.Handlers
	installer *interceptor.Installer
	detector  *whitescreen.Detector

	mu       sync.Mutex
	plugins  []plugin.Plugin
	shutdown bool
}

// Init instruments win. Missing dsn or api key, a disabled configuration or
// a host without fetch all yield an inert client; the problem is logged.
func Init(opts Options, win *Window) *Client {
	if err := opts.Validate(); err != nil {
		log.Error().Err(err).Msg("websee: missing required option")
		return &Client{}
	}
	if opts.Disabled {
		return &Client{}
	}
	if win == nil || win.Fetch == nil || win.Fetch.Get() == nil {
		log.Warn().Msg("websee: host has no fetch, monitoring disabled")
		return &Client{}
	}
	if err := opts.Normalize(); err != nil {
		log.Error().Err(err).Msg("websee: invalid options")
		return &Client{}
	}

	o := &opts
	c := &Client{
		enabled: true,
		opts:    o,
		win:     win,
		reg:     registry.New(win.Navigator.UserAgent),
		crumbs:  breadcrumb.New(o.MaxBreadcrumbs, o.BeforePushBreadcrumb),
		bus:     bus.New(),
	}
	c.transport = transport.New(o, c.reg, c.crumbs, win)
	c.detector = whitescreen.New(win, o)
	c.handlers = handler.New(o, c.crumbs, c.reg, c.transport, c.detector)
	c.installer = interceptor.New(win, c.bus, o, c.transport.IsSDKURL)

	c.applySilentFlags()
	c.setupReplace()
	return c
}

// applySilentFlags blocks the monitors switched off in the options. Record
// screen and white screen are left unflagged so their plugins can still be
// installed with Use.
func (c *Client) applySilentFlags() {
	for _, t := range []event.Type{
		event.XHR,
		event.Fetch,
		event.Click,
		event.Error,
		event.UnhandledRejection,
		event.Hashchange,
		event.History,
		event.Performance,
	} {
		c.bus.SetFlag(t, !c.opts.Monitor(t))
	}
}

func (c *Client) setupReplace() {
	h := c.handlers
	in := c.installer

	httpHandler := func(data any) {
		if call, ok := data.(event.HTTPCall); ok {
			h.HTTP(call)
		}
	}
	in.AddReplaceHandler(event.XHR, httpHandler)
	in.AddReplaceHandler(event.Fetch, httpHandler)
	in.AddReplaceHandler(event.Error, func(data any) {
		if ev, ok := data.(*browser.Event); ok {
			h.Error(ev)
		}
	})
	in.AddReplaceHandler(event.History, func(data any) {
		if r, ok := data.(event.Route); ok {
			h.History(r)
		}
	})
	in.AddReplaceHandler(event.UnhandledRejection, func(data any) {
		if ev, ok := data.(*browser.Event); ok {
			h.UnhandledRejection(ev)
		}
	})
	in.AddReplaceHandler(event.Click, func(data any) {
		if el, ok := data.(*browser.Element); ok {
			h.Click(el)
		}
	})
	in.AddReplaceHandler(event.Hashchange, func(data any) {
		if ev, ok := data.(*browser.Event); ok {
			h.Hashchange(ev)
		}
	})
	if c.opts.Monitor(event.WhiteScreen) {
		in.AddReplaceHandler(event.WhiteScreen, func(any) { h.WhiteScreen() })
	}
}

// Enabled reports whether Init instrumented the window.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Use installs a plugin. A plugin whose event type is already taken or
// switched off is ignored.
func (c *Client) Use(p Plugin) {
	if !c.enabled || p == nil {
		return
	}
	p.BindOptions(c.opts)
	if !c.bus.Subscribe(p.Type(), p.Transform) {
		return
	}

	c.mu.Lock()
	c.plugins = append(c.plugins, p)
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("plugin", string(p.Type())).Msg("websee: plugin core panicked")
		}
	}()
	p.Core(plugin.SDK{
		Transport:  c.transport,
		Breadcrumb: c.crumbs,
		Options:    c.opts,
		Registry:   c.reg,
		Window:     c.win,
		Notify:     c.bus.Publish,
	})
}

// LogOptions describes a custom report. Type defaults to custom.
type LogOptions struct {
	Message any
	Error   error
	Type    EventType
}

// Log reports a custom event.
func (c *Client) Log(l LogOptions) {
	if !c.enabled {
		return
	}
	c.handlers.Log(l.Type, l.Message, l.Error)
}

// ErrorHandler is a UI framework's global error hook.
type ErrorHandler func(err error, info string)

// FrameworkErrorHandler wraps a framework's global error handler so errors
// are reported before next runs. Only the first call wraps; later calls
// return next unchanged.
func (c *Client) FrameworkErrorHandler(next ErrorHandler) ErrorHandler {
	if !c.enabled || c.bus.Flag(event.Vue) {
		return next
	}
	c.bus.SetFlag(event.Vue, true)
	return func(err error, info string) {
		if err != nil {
			c.handlers.Error(handler.ErrorEvent(err))
		}
		if next != nil {
			next(err, info)
		}
	}
}

// ErrorBoundary reports an error caught by a component error boundary.
// Only the first call is reported.
func (c *Client) ErrorBoundary(err error) {
	if !c.enabled || err == nil || c.bus.Flag(event.React) {
		return
	}
	c.bus.SetFlag(event.React, true)
	c.handlers.Error(handler.ErrorEvent(err))
}

// Breadcrumbs returns the current breadcrumb trail, oldest first.
func (c *Client) Breadcrumbs() []Breadcrumb {
	if !c.enabled {
		return nil
	}
	return c.crumbs.Snapshot()
}

// Shutdown restores the window, stops every background loop and waits for
// queued reports to be delivered.
func (c *Client) Shutdown() {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return
	}
	c.shutdown = true
	plugins := c.plugins
	c.mu.Unlock()

	c.installer.Close()
	c.detector.Stop()
	for _, p := range plugins {
		if s, ok := p.(plugin.Stopper); ok {
			s.Stop()
		}
	}
	c.transport.Close()
	c.bus.Reset()
	c.reg.StopRecording()
}
