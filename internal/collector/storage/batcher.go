package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

// Writer is the table API the batcher flushes into.
type Writer interface {
	InsertReports(ctx context.Context, rows []ReportRow) error
	InsertRecordings(ctx context.Context, rows []RecordingRow) error
}

// Batcher buffers reports and writes them in batches, either when the
// buffer fills up or on every flush interval.
type Batcher struct {
	w        Writer
	batchCfg config.BatchConfig

	reportBuffer    []ReportRow
	recordingBuffer []RecordingRow

	mu        sync.Mutex
	ticker    *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewBatcher(w Writer, batchCfg config.BatchConfig) *Batcher {
	b := &Batcher{
		w:               w,
		batchCfg:        batchCfg,
		reportBuffer:    make([]ReportRow, 0, batchCfg.Size),
		recordingBuffer: make([]RecordingRow, 0, 16),
		done:            make(chan struct{}),
	}

	b.ticker = time.NewTicker(batchCfg.FlushInterval)
	b.wg.Add(1)
	go b.flushLoop()

	return b
}

// Produce buffers one report.
func (b *Batcher) Produce(_ context.Context, r *enricher.EnrichedReport) error {
	row, rec, err := toRows(r)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.reportBuffer = append(b.reportBuffer, row)
	if rec != nil {
		b.recordingBuffer = append(b.recordingBuffer, *rec)
	}
	shouldFlush := len(b.reportBuffer) >= b.batchCfg.Size
	b.mu.Unlock()

	if shouldFlush {
		b.Flush()
	}
	return nil
}

func toRows(r *enricher.EnrichedReport) (ReportRow, *RecordingRow, error) {
	ts := time.UnixMilli(r.Time)
	if r.Time == 0 {
		ts = time.UnixMilli(r.ServerTimestamp)
	}

	payload := r.Report
	payload.Events = ""
	data, err := json.Marshal(payload)
	if err != nil {
		return ReportRow{}, nil, err
	}

	row := ReportRow{
		EventID:        r.EventID,
		ProjectID:      r.ProjectID,
		SessionID:      r.UUID,
		UserID:         r.UserID,
		EventType:      string(r.Type),
		Status:         string(r.Status),
		Timestamp:      ts,
		Message:        r.Message,
		PageURL:        r.PageURL,
		SDKVersion:     r.SDKVersion,
		Browser:        r.Browser,
		BrowserVersion: r.BrowserVersion,
		OS:             r.OS,
		DeviceType:     r.DeviceType,
		Country:        r.Country,
		City:           r.City,
		RecordScreenID: r.RecordScreenID,
		Payload:        string(data),
	}

	var rec *RecordingRow
	if r.Type == event.RecordScreen && r.Events != "" {
		rec = &RecordingRow{
			ProjectID:      r.ProjectID,
			SessionID:      r.UUID,
			RecordScreenID: r.RecordScreenID,
			Timestamp:      ts,
			PageURL:        r.PageURL,
			Events:         r.Events,
		}
	}
	return row, rec, nil
}

func (b *Batcher) flushLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.ticker.C:
			b.Flush()
		}
	}
}

// Flush writes everything buffered so far.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if len(b.reportBuffer) == 0 && len(b.recordingBuffer) == 0 {
		b.mu.Unlock()
		return
	}

	reports := b.reportBuffer
	recordings := b.recordingBuffer
	b.reportBuffer = make([]ReportRow, 0, b.batchCfg.Size)
	b.recordingBuffer = make([]RecordingRow, 0, 16)
	b.mu.Unlock()

	ctx := context.Background()
	start := time.Now()

	if len(reports) > 0 {
		if err := b.w.InsertReports(ctx, reports); err != nil {
			log.Error().Err(err).Int("count", len(reports)).Msg("Failed to insert reports")
		} else {
			log.Info().
				Int("count", len(reports)).
				Dur("duration", time.Since(start)).
				Msg("Flushed reports to ClickHouse")
		}
	}

	if len(recordings) > 0 {
		if err := b.w.InsertRecordings(ctx, recordings); err != nil {
			log.Error().Err(err).Int("count", len(recordings)).Msg("Failed to insert recordings")
		} else {
			log.Debug().Int("count", len(recordings)).Msg("Flushed recordings to ClickHouse")
		}
	}
}

// Close stops the flush loop and writes what is left.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.ticker.Stop()
		b.wg.Wait()
		b.Flush()
	})
}
