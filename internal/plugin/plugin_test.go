package plugin

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/breadcrumb"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/bus"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
	"github.com/gosight/gosight/websee/internal/registry"
	"github.com/gosight/gosight/websee/internal/whitescreen"
)

type fakeReporter struct {
	mu      sync.Mutex
	reports []event.Report
}

func (f *fakeReporter) Send(_ context.Context, r event.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

func (f *fakeReporter) all() []event.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Report(nil), f.reports...)
}

// install mirrors how the SDK registers a plugin.
func install(t *testing.T, p Plugin, win *browser.Window) (*fakeReporter, SDK) {
	opts := config.Default()
	require.NoError(t, opts.Normalize())
	b := bus.New()
	rep := &fakeReporter{}
	sdk := SDK{
		Transport:  rep,
		Breadcrumb: breadcrumb.New(0, nil),
		Options:    &opts,
		Registry:   registry.New(""),
		Window:     win,
		Notify:     b.Publish,
	}
	p.BindOptions(&opts)
	require.True(t, b.Subscribe(p.Type(), p.Transform))
	p.Core(sdk)
	if s, ok := p.(Stopper); ok {
		t.Cleanup(s.Stop)
	}
	return rep, sdk
}

func metrics(reports []event.Report) map[string]event.Report {
	out := make(map[string]event.Report)
	for _, r := range reports {
		out[r.Name] = r
	}
	return out
}

func TestPerformance_ReportsVitals(t *testing.T) {
	win := browser.New(browser.Config{})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "paint", Name: "first-paint", StartTime: 50})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "paint", Name: "first-contentful-paint", StartTime: 900})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "navigation", StartTime: 0, ResponseStart: 1200})

	rep, _ := install(t, NewPerformance(), win)

	win.Performance.Record(browser.PerformanceEntry{EntryType: "largest-contentful-paint", StartTime: 3000})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "largest-contentful-paint", StartTime: 4000})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "first-input", StartTime: 100, ProcessingStart: 130})

	got := metrics(rep.all())
	require.Len(t, got, 4)
	assert.Equal(t, 900.0, got["FCP"].Value)
	assert.Equal(t, RatingGood, got["FCP"].Rating)
	assert.Equal(t, 3000.0, got["LCP"].Value)
	assert.Equal(t, RatingPoor, got["LCP"].Rating)
	assert.Equal(t, 30.0, got["FID"].Value)
	assert.Equal(t, RatingPoor, got["TTFB"].Rating)
	assert.Equal(t, event.Performance, got["FCP"].Type)
}

func TestPerformance_CLSSessionWindows(t *testing.T) {
	win := browser.New(browser.Config{})
	rep, _ := install(t, NewPerformance(), win)

	shift := func(at, v float64, input bool) {
		win.Performance.Record(browser.PerformanceEntry{EntryType: "layout-shift", StartTime: at, Value: v, HadRecentInput: input})
	}
	shift(100, 0.1, false)
	shift(500, 0.1, false)
	shift(600, 5, true)
	shift(3000, 0.05, false)

	var cls []float64
	for _, r := range rep.all() {
		if r.Name == "CLS" {
			cls = append(cls, r.Value)
		}
	}
	require.Len(t, cls, 2)
	assert.InDelta(t, 0.1, cls[0], 1e-9)
	assert.InDelta(t, 0.2, cls[1], 1e-9)
}

func TestRecordScreen_UploadsOnlyWindowsWithErrors(t *testing.T) {
	win := browser.New(browser.Config{})
	recorder := browser.NewEventRecorder(func() []byte { return []byte(`{"type":2}`) })
	win.Recorder = recorder

	p := NewRecordScreen(time.Hour, nil)
	rep, sdk := install(t, p, win)
	assert.True(t, sdk.Options.Monitor(event.RecordScreen))
	assert.True(t, sdk.Registry.Recording())

	// quiet window is discarded
	recorder.Capture([]byte(`{"type":3,"n":1}`))
	recorder.Checkout()
	assert.Empty(t, rep.all())

	recorder.Capture([]byte(`{"type":3,"n":2}`))
	id := sdk.Registry.MarkRecordError()
	recorder.Checkout()

	reports := rep.all()
	require.Len(t, reports, 1)
	assert.Equal(t, event.RecordScreen, reports[0].Type)
	assert.Equal(t, id, reports[0].RecordScreenID)

	raw, err := Unzip(reports[0].Events)
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(raw, &events))
	require.Len(t, events, 2)
	assert.Equal(t, float64(2), events[0]["type"])
	assert.Equal(t, float64(2), events[1]["n"])
}

func TestRecordScreen_NoRecorder(t *testing.T) {
	_, sdk := install(t, NewRecordScreen(0, []event.Type{event.Error}), browser.New(browser.Config{}))
	assert.False(t, sdk.Registry.Recording())
	assert.Equal(t, []event.Type{event.Error}, sdk.Options.RecordScreenTypeList)
}

func TestZipRoundTrip(t *testing.T) {
	s, err := Zip([]string{"a", "ü"})
	require.NoError(t, err)
	raw, err := Unzip(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","ü"]`, string(raw))
}

func TestWhiteScreenPlugin(t *testing.T) {
	win := browser.New(browser.Config{})
	win.Document.SetReadyState(browser.ReadyStateComplete)
	win.Document.SetHitTest(func(x, y float64) []*browser.Element {
		return []*browser.Element{{TagName: "DIV", ID: "main"}}
	})

	rep, _ := install(t, NewWhiteScreen(false, []string{"#main"}, whitescreen.WithInterval(time.Hour)), win)

	reports := rep.all()
	require.Len(t, reports, 1)
	assert.Equal(t, event.WhiteScreen, reports[0].Type)
	assert.Equal(t, event.StatusError, reports[0].Status)
}
