// Package plugin defines optional SDK extensions. A plugin owns one event
// type: the host subscribes Transform to that type and then calls Core once
// so the plugin can start producing events.
package plugin

import (
	"context"

	"github.com/gosight/gosight/websee/internal/breadcrumb"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/registry"
)

// Reporter delivers reports. Implemented by transport.Transport.
type Reporter interface {
	Send(ctx context.Context, r event.Report)
}

// SDK is the set of components a plugin may use.
type SDK struct {
	Transport  Reporter
	Breadcrumb *breadcrumb.Buffer
	Options    *config.Options
	Registry   *registry.Registry
	Window     *browser.Window
	// Notify publishes on the event bus.
	Notify func(t event.Type, data any)
}

type Plugin interface {
	Type() event.Type
	// BindOptions lets the plugin read or adjust the SDK options before Core.
	BindOptions(opts *config.Options)
	Core(sdk SDK)
	// Transform receives every event published under Type.
	Transform(data any)
}

// Stopper is implemented by plugins holding timers or observers.
type Stopper interface {
	Stop()
}
