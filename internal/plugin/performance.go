package plugin

import (
	"context"
	"sync"

	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/config"
	"github.com/gosight/gosight/websee/internal/event"
)

const (
	RatingGood = "good"
	RatingPoor = "poor"
)

// Metric is one web-vitals measurement.
type Metric struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Rating string  `json:"rating"`
}

// Poor thresholds, in milliseconds except CLS which is a score.
const (
	fcpPoor  = 2500
	lcpPoor  = 2500
	fidPoor  = 100
	ttfbPoor = 800
	clsPoor  = 0.25
)

func rate(value, poor float64) string {
	if value > poor {
		return RatingPoor
	}
	return RatingGood
}

// Performance reports FCP, LCP, FID, CLS and TTFB from the window's
// performance timeline.
type Performance struct {
	sdk SDK

	mu          sync.Mutex
	disconnects []func()
}

func NewPerformance() *Performance {
	return &Performance{}
}

func (p *Performance) Type() event.Type { return event.Performance }

func (p *Performance) BindOptions(*config.Options) {}

func (p *Performance) Core(sdk SDK) {
	p.sdk = sdk
	perf := sdk.Window.Performance
	if perf == nil {
		return
	}
	emit := func(m Metric) { sdk.Notify(event.Performance, m) }

	p.observeOnce(perf, "paint", func(e browser.PerformanceEntry) (Metric, bool) {
		if e.Name != "first-contentful-paint" {
			return Metric{}, false
		}
		return Metric{Name: "FCP", Value: e.StartTime, Rating: rate(e.StartTime, fcpPoor)}, true
	}, emit)

	p.observeOnce(perf, "largest-contentful-paint", func(e browser.PerformanceEntry) (Metric, bool) {
		return Metric{Name: "LCP", Value: e.StartTime, Rating: rate(e.StartTime, lcpPoor)}, true
	}, emit)

	p.observeOnce(perf, "first-input", func(e browser.PerformanceEntry) (Metric, bool) {
		v := e.ProcessingStart - e.StartTime
		return Metric{Name: "FID", Value: v, Rating: rate(v, fidPoor)}, true
	}, emit)

	p.observeOnce(perf, "navigation", func(e browser.PerformanceEntry) (Metric, bool) {
		v := e.ResponseStart - e.StartTime
		return Metric{Name: "TTFB", Value: v, Rating: rate(v, ttfbPoor)}, true
	}, emit)

	p.observeCLS(perf, emit)
}

// observeOnce reports the first matching entry; later entries are ignored.
func (p *Performance) observeOnce(perf *browser.Performance, entryType string, measure func(browser.PerformanceEntry) (Metric, bool), emit func(Metric)) {
	var (
		mu   sync.Mutex
		done bool
	)
	disconnect := perf.Observe(entryType, true, func(e browser.PerformanceEntry) {
		m, ok := measure(e)
		if !ok {
			return
		}
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		done = true
		mu.Unlock()
		emit(m)
	})

	mu.Lock()
	finished := done
	mu.Unlock()
	if finished {
		disconnect()
		return
	}
	p.track(disconnect)
}

// observeCLS groups layout shifts into session windows (entries less than
// 1s apart, window shorter than 5s) and reports the largest window.
func (p *Performance) observeCLS(perf *browser.Performance, emit func(Metric)) {
	var (
		mu             sync.Mutex
		clsValue       float64
		sessionValue   float64
		sessionEntries []browser.PerformanceEntry
	)
	p.track(perf.Observe("layout-shift", true, func(e browser.PerformanceEntry) {
		if e.HadRecentInput {
			return
		}
		mu.Lock()
		if n := len(sessionEntries); sessionValue > 0 &&
			e.StartTime-sessionEntries[n-1].StartTime < 1000 &&
			e.StartTime-sessionEntries[0].StartTime < 5000 {
			sessionValue += e.Value
			sessionEntries = append(sessionEntries, e)
		} else {
			sessionValue = e.Value
			sessionEntries = []browser.PerformanceEntry{e}
		}
		report := sessionValue > clsValue
		if report {
			clsValue = sessionValue
		}
		v := clsValue
		mu.Unlock()

		if report {
			emit(Metric{Name: "CLS", Value: v, Rating: rate(v, clsPoor)})
		}
	}))
}

func (p *Performance) track(disconnect func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects = append(p.disconnects, disconnect)
}

// Transform sends a published Metric.
func (p *Performance) Transform(data any) {
	m, ok := data.(Metric)
	if !ok || p.sdk.Transport == nil {
		return
	}
	p.sdk.Transport.Send(context.Background(), event.Report{
		Type:   event.Performance,
		Status: event.StatusOK,
		Time:   event.Now(),
		Name:   m.Name,
		Value:  m.Value,
		Rating: m.Rating,
	})
}

func (p *Performance) Stop() {
	p.mu.Lock()
	ds := p.disconnects
	p.disconnects = nil
	p.mu.Unlock()
	for _, d := range ds {
		d()
	}
}
