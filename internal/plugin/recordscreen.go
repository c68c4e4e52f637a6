package plugin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

// Recording is a closed recording window that contained an error.
type Recording struct {
	ID     string
	Events []json.RawMessage
}

// RecordScreen records the page continuously and uploads the last window
// only when an error was reported while it was open. Windows rotate on every
// recorder checkout.
type RecordScreen struct {
	recordTime time.Duration
	typeList   []event.Type

	sdk SDK

	mu     sync.Mutex
	events []json.RawMessage
	stop   func()
}

// NewRecordScreen takes the checkout interval and the report types that flag
// a window. Zero values fall back to the SDK options.
func NewRecordScreen(recordTime time.Duration, typeList []event.Type) *RecordScreen {
	return &RecordScreen{recordTime: recordTime, typeList: typeList}
}

func (p *RecordScreen) Type() event.Type { return event.RecordScreen }

func (p *RecordScreen) BindOptions(opts *config.Options) {
	if p.recordTime <= 0 {
		p.recordTime = opts.RecordScreenTime
	}
	if len(p.typeList) == 0 {
		p.typeList = opts.RecordScreenTypeList
	}
	opts.SilentRecordScreen = config.Bool(true)
	opts.RecordScreenTypeList = p.typeList
}

func (p *RecordScreen) Core(sdk SDK) {
	p.sdk = sdk
	rec := sdk.Window.Recorder
	if rec == nil {
		log.Warn().Msg("websee: host has no screen recorder, record screen disabled")
		return
	}
	sdk.Registry.StartRecording()
	stop := rec.Record(p.emit, p.recordTime)

	p.mu.Lock()
	p.stop = stop
	p.mu.Unlock()
}

func (p *RecordScreen) emit(ev []byte, checkout bool) {
	if checkout {
		id, hadError := p.sdk.Registry.RotateRecording()
		p.mu.Lock()
		events := p.events
		p.events = nil
		p.mu.Unlock()

		if hadError && len(events) > 0 {
			p.sdk.Notify(event.RecordScreen, Recording{ID: id, Events: events})
		}
	}

	raw := json.RawMessage(ev)
	if !json.Valid(ev) {
		raw, _ = json.Marshal(string(ev))
	}
	p.mu.Lock()
	p.events = append(p.events, raw)
	p.mu.Unlock()
}

// Transform uploads a published Recording.
func (p *RecordScreen) Transform(data any) {
	rec, ok := data.(Recording)
	if !ok || p.sdk.Transport == nil {
		return
	}
	zipped, err := Zip(rec.Events)
	if err != nil {
		log.Error().Err(err).Str("record_screen_id", rec.ID).Msg("websee: compress recording")
		return
	}
	p.sdk.Transport.Send(context.Background(), event.Report{
		Type:           event.RecordScreen,
		Status:         event.StatusOK,
		Time:           event.Now(),
		RecordScreenID: rec.ID,
		Events:         zipped,
	})
}

func (p *RecordScreen) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
	if p.sdk.Registry != nil {
		p.sdk.Registry.StopRecording()
	}
}

// Zip encodes v as JSON, base64-encodes it, gzips the result and
// base64-encodes again for transport as text.
func Zip(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(base64.StdEncoding.EncodeToString(data))); err != nil {
		return "", fmt.Errorf("gzip events: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip events: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Unzip reverses Zip and returns the JSON document.
func Unzip(s string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	defer zr.Close()
	inner, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	return base64.StdEncoding.DecodeString(string(inner))
}
