// Package handler turns intercepted events into breadcrumbs and reports.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/breadcrumb"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/registry"
	"github.com/gosight/gosight/websee/internal/stacktrace"
)

// Reporter delivers reports. Implemented by transport.Transport.
type Reporter interface {
	Send(ctx context.Context, r event.Report)
	IsSDKURL(target string) bool
}

// Detector runs a white-screen check. Implemented by whitescreen.Detector.
type Detector interface {
	Start(onResult func(event.Status))
}

type Handlers struct {
	opts     *config.Options
	crumbs   *breadcrumb.Buffer
	reg      *registry.Registry
	reporter Reporter
	detector Detector
}

func New(opts *config.Options, crumbs *breadcrumb.Buffer, reg *registry.Registry, reporter Reporter, detector Detector) *Handlers {
	return &Handlers{
		opts:     opts,
		crumbs:   crumbs,
		reg:      reg,
		reporter: reporter,
		detector: detector,
	}
}

func (h *Handlers) push(t event.Type, status event.Status, ts int64, data any) {
	h.crumbs.Push(event.Breadcrumb{
		Type:     t,
		Category: breadcrumb.Category(t),
		Status:   status,
		Time:     ts,
		Data:     data,
	})
}

// HTTP handles a completed xhr or fetch call. Failed calls are reported;
// every call except the SDK's own uploads becomes a breadcrumb.
func (h *Handlers) HTTP(call event.HTTPCall) {
	result := HTTPTransform(call, h.opts)

	if !h.reporter.IsSDKURL(call.URL) {
		h.push(call.Type, result.Status, call.Time, result)
	}
	if result.Status != event.StatusError {
		return
	}
	h.reporter.Send(context.Background(), event.Report{
		Type:        call.Type,
		Status:      event.StatusError,
		Time:        result.Time,
		Message:     result.Message,
		URL:         result.URL,
		ElapsedTime: result.ElapsedTime,
		RequestData: result.RequestData,
		Response:    result.Response,
	})
}

// Error handles window error events. A target with a tag name means a
// resource failed to load; otherwise it is a script error.
func (h *Handlers) Error(ev *browser.Event) {
	if ev.Target != nil && ev.Target.LocalName() != "" {
		h.resourceError(ev.Target)
		return
	}

	frame := errorFrame(ev.Error, ev.Filename, ev.Lineno, ev.Colno)
	message := ev.Message
	if message == "" && ev.Error != nil {
		message = ev.Error.Error()
	}
	h.codeError(event.Error, message, frame)
}

func (h *Handlers) resourceError(el *browser.Element) {
	info := ResourceTransform(el)
	h.push(event.Resource, event.StatusError, event.Now(), info)
	h.reporter.Send(context.Background(), event.Report{
		Type:    event.Resource,
		Status:  event.StatusError,
		Time:    info.Time,
		Message: info.Message,
		Name:    info.Name,
	})
}

// codeError records a breadcrumb for every occurrence but, unless
// RepeatCodeError is set, reports each distinct error only once.
func (h *Handlers) codeError(t event.Type, message string, frame stacktrace.Frame) {
	r := event.Report{
		Type:     t,
		Status:   event.StatusError,
		Time:     event.Now(),
		Message:  message,
		FileName: frame.File,
		Line:     frame.Line,
		Column:   frame.Column,
	}
	h.push(t, event.StatusError, r.Time, r)

	hash := registry.ErrorSignature(t, message, frame.File, frame.Column)
	if h.reg.SeenError(hash) && !h.opts.RepeatCodeError {
		log.Debug().Str("type", string(t)).Str("signature", hash).Msg("websee: repeated error not reported")
		return
	}
	h.reporter.Send(context.Background(), r)
}

// UnhandledRejection handles a rejected promise. The reason is usually a
// ScriptError but may be any value.
func (h *Handlers) UnhandledRejection(ev *browser.Event) {
	var (
		message string
		frame   stacktrace.Frame
	)
	var se *browser.ScriptError
	switch reason := ev.Reason.(type) {
	case *browser.ScriptError:
		se = reason
	case error:
		if !errors.As(reason, &se) {
			message = reason.Error()
		}
	default:
		message = stringify(reason)
	}
	if se != nil {
		message = se.Message
		if message == "" {
			message = se.Stack
		}
		frame, _ = stacktrace.First(se.Stack)
	}
	h.codeError(event.UnhandledRejection, message, frame)
}

// History records a route change.
func (h *Handlers) History(route event.Route) {
	from, to := RelativeURL(route.From), RelativeURL(route.To)
	if from == "" {
		from = "/"
	}
	if to == "" {
		to = "/"
	}
	h.push(event.History, event.StatusOK, event.Now(), event.Route{From: from, To: to})
}

// Hashchange records a fragment change.
func (h *Handlers) Hashchange(ev *browser.Event) {
	h.push(event.Hashchange, event.StatusOK, event.Now(), event.Route{
		From: RelativeURL(ev.OldURL),
		To:   RelativeURL(ev.NewURL),
	})
}

// Click records the clicked element.
func (h *Handlers) Click(el *browser.Element) {
	if s := HTMLElementAsString(el); s != "" {
		h.push(event.Click, event.StatusOK, event.Now(), s)
	}
}

// WhiteScreen starts the detector and reports every sample result.
func (h *Handlers) WhiteScreen() {
	if h.detector == nil {
		return
	}
	h.detector.Start(func(status event.Status) {
		h.reporter.Send(context.Background(), event.Report{
			Type:   event.WhiteScreen,
			Status: status,
			Time:   event.Now(),
		})
	})
}

// Log reports a custom message, attaching the error location when err
// carries a stack.
func (h *Handlers) Log(t event.Type, message any, err error) {
	if t == "" {
		t = event.Custom
	}
	msg := stringify(message)
	if msg == "" {
		msg = "customMsg"
	}

	r := event.Report{
		Type:    t,
		Status:  event.StatusError,
		Time:    event.Now(),
		Message: msg,
	}
	if err != nil {
		var se *browser.ScriptError
		if errors.As(err, &se) {
			if f, ok := stacktrace.First(se.Stack); ok {
				r.FileName, r.Line, r.Column = f.File, f.Line, f.Column
			}
		}
		r.Extra = map[string]any{"error": err.Error()}
	}

	h.crumbs.Push(event.Breadcrumb{
		Type:     t,
		Category: breadcrumb.Category(event.Custom),
		Status:   event.StatusError,
		Time:     r.Time,
		Data:     msg,
	})
	h.reporter.Send(context.Background(), r)
}

func errorFrame(se *browser.ScriptError, file string, line, col int) stacktrace.Frame {
	if se != nil {
		if f, ok := stacktrace.First(se.Stack); ok {
			return f
		}
	}
	return stacktrace.Frame{File: file, Line: line, Column: col}
}

// ErrorEvent builds the event routed through Error for an error raised by a
// UI framework hook rather than the window.
func ErrorEvent(err error) *browser.Event {
	var se *browser.ScriptError
	if !errors.As(err, &se) {
		se = &browser.ScriptError{Name: fmt.Sprintf("%T", err), Message: err.Error()}
	}
	return &browser.Event{Type: "error", Message: se.Message, Error: se}
}
