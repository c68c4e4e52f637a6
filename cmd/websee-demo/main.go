package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee"
	"github.com/gosight/gosight/websee/internal/browser"
	"github.com/gosight/gosight/websee/internal/plugin"
)

// websee-demo drives a simulated page through a short session so a
// collector can be exercised end to end.
func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/websee.yaml"
	}

	opts, err := websee.LoadOptions(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	pageURL := os.Getenv("DEMO_PAGE_URL")
	if pageURL == "" {
		pageURL = "http://localhost:3000/"
	}

	win := browser.New(browser.Config{
		Href:      pageURL,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Client:    &http.Client{Timeout: 10 * time.Second},
	})
	app := &browser.Element{TagName: "DIV", ID: "app"}
	win.Document.SetHitTest(func(x, y float64) []*browser.Element {
		return []*browser.Element{app}
	})
	recorder := browser.NewEventRecorder(func() []byte {
		return []byte(fmt.Sprintf(`{"type":2,"timestamp":%d}`, time.Now().UnixMilli()))
	})
	win.Recorder = recorder

	client := websee.Init(*opts, win)
	if !client.Enabled() {
		log.Fatal().Msg("SDK refused to start, check dsn and api_key")
	}
	defer client.Shutdown()

	client.Use(plugin.NewPerformance())
	client.Use(plugin.NewRecordScreen(0, nil))

	log.Info().Str("dsn", opts.DSN).Str("page", pageURL).Msg("Simulating session")

	win.Performance.Record(browser.PerformanceEntry{EntryType: "navigation", ResponseStart: 180})
	win.Performance.Record(browser.PerformanceEntry{EntryType: "paint", Name: "first-contentful-paint", StartTime: 640})
	win.Load()

	win.Document.Click(&browser.Element{TagName: "BUTTON", ID: "checkout", Text: "Checkout"})
	recorder.Capture([]byte(`{"type":3,"data":{"source":2,"type":2}}`))
	win.PushState(nil, "", "/cart")

	xhr := win.NewXHR()
	xhr.Open(http.MethodGet, win.Resolve("/api/cart"))
	xhr.Send(nil)

	win.ThrowError(&browser.ScriptError{
		Name:    "TypeError",
		Message: "Cannot read properties of undefined (reading 'total')",
		Stack:   "TypeError: Cannot read properties of undefined (reading 'total')\n    at render (" + win.Resolve("/static/app.js") + ":42:17)",
	}, win.Resolve("/static/app.js"), 42, 17)
	recorder.Checkout()

	client.Log(websee.LogOptions{Message: "demo session finished"})
	log.Info().Int("breadcrumbs", len(client.Breadcrumbs())).Msg("Session done, flushing")
}
