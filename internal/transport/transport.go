// Package transport delivers reports to the DSN. Each report is enriched with
// the session envelope, offered to the before-send hook, then sent by beacon
// with image-pixel or JSON POST fallback. Delivery is fire-and-forget.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/breadcrumb"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/registry"
)

const requestTimeout = 5 * time.Second

type Transport struct {
	opts   *config.Options
	reg    *registry.Registry
	crumbs *breadcrumb.Buffer
	win    *browser.Window
	client *http.Client
	queue  *Queue
}

func New(opts *config.Options, reg *registry.Registry, crumbs *breadcrumb.Buffer, win *browser.Window) *Transport {
	client := &http.Client{Timeout: requestTimeout}
	if hc := win.HTTPClient(); hc != nil {
		client.Transport = hc.Transport
	}
	return &Transport{
		opts:   opts,
		reg:    reg,
		crumbs: crumbs,
		win:    win,
		client: client,
		queue:  NewQueue(),
	}
}

// IsSDKURL reports whether target points at the configured DSN, so the
// SDK's own uploads are never observed.
func (t *Transport) IsSDKURL(target string) bool {
	return t.opts.DSN != "" && strings.Contains(target, t.opts.DSN)
}

// Send enriches r and hands it to the first delivery channel that accepts it.
func (t *Transport) Send(ctx context.Context, r event.Report) {
	dsn := t.opts.DSN
	if dsn == "" {
		log.Error().Str("type", string(r.Type)).Msg("websee: dsn is empty, report dropped")
		return
	}

	if t.reg.Recording() && t.opts.RecordsOn(r.Type) {
		r.RecordScreenID = t.reg.MarkRecordError()
	}

	r = t.envelope(r)

	if hook := t.opts.BeforeDataReport; hook != nil {
		var ok bool
		if r, ok = hook(ctx, r); !ok {
			return
		}
	}

	data, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Str("type", string(r.Type)).Msg("websee: failed to encode report")
		return
	}

	if t.win.Navigator.Beacon(dsn, data) {
		return
	}
	if t.opts.UseImgUpload {
		t.queue.Add(func() { t.imgRequest(dsn, data) })
		return
	}
	t.queue.Add(func() { t.post(dsn, data) })
}

func (t *Transport) envelope(r event.Report) event.Report {
	r.UserID = t.userID()
	r.SDKVersion = event.SDKVersion
	r.APIKey = t.opts.APIKey
	r.UUID = t.reg.SessionID()
	r.PageURL = t.win.Href()
	r.DeviceInfo = t.reg.Device()
	if !event.BreadcrumbExempt(r.Type) {
		r.Breadcrumb = t.crumbs.Snapshot()
	} else {
		r.Breadcrumb = nil
	}
	return r
}

func (t *Transport) userID() string {
	if t.opts.UserID != "" {
		return t.opts.UserID
	}
	if t.opts.GetUserID == nil {
		return ""
	}
	switch id := t.opts.GetUserID().(type) {
	case string:
		return id
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(id)
	default:
		log.Error().Str("got", fmt.Sprintf("%T", id)).Msg("websee: GetUserID must return a string or number")
		return ""
	}
}

// imgRequest mimics a 1x1 image beacon: GET dsn?data=<json>.
func (t *Transport) imgRequest(dsn string, data []byte) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	t.do(http.MethodGet, dsn+sep+"data="+url.QueryEscape(string(data)), nil)
}

func (t *Transport) post(dsn string, data []byte) {
	t.do(http.MethodPost, dsn, data)
}

func (t *Transport) do(method, target string, body []byte) {
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		log.Debug().Err(err).Msg("websee: build report request")
		return
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Msg("websee: report delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		log.Debug().Int("status", resp.StatusCode).Msg("websee: report rejected")
	}
}

// Close drains queued deliveries and waits, up to the request timeout, for
// beacons still in flight.
func (t *Transport) Close() {
	t.queue.Close()
	if !t.win.Navigator.Wait(requestTimeout) {
		log.Warn().Msg("websee: beacons still in flight at shutdown")
	}
}
