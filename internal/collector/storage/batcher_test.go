package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) InsertReports(ctx context.Context, rows []ReportRow) error {
	return m.Called(rows).Error(0)
}

func (m *mockWriter) InsertRecordings(ctx context.Context, rows []RecordingRow) error {
	return m.Called(rows).Error(0)
}

func report(t event.Type) *enricher.EnrichedReport {
	return &enricher.EnrichedReport{
		Report: event.Report{
			Type:    t,
			Status:  event.StatusError,
			Time:    1700000000000,
			Message: "boom",
			UUID:    "session-1",
			Events:  "H4sI",
		},
		EventID:   "ev",
		ProjectID: "proj",
	}
}

func TestBatcher_FlushesWhenFull(t *testing.T) {
	w := &mockWriter{}
	w.On("InsertReports", mock.MatchedBy(func(rows []ReportRow) bool { return len(rows) == 2 })).Return(nil).Once()

	b := NewBatcher(w, config.BatchConfig{Size: 2, FlushInterval: time.Hour})
	require.NoError(t, b.Produce(context.Background(), report(event.Error)))
	w.AssertNotCalled(t, "InsertReports", mock.Anything)

	require.NoError(t, b.Produce(context.Background(), report(event.XHR)))
	b.Close()

	w.AssertExpectations(t)
}

func TestBatcher_RecordingsGoToTheirOwnTable(t *testing.T) {
	w := &mockWriter{}
	w.On("InsertReports", mock.Anything).Return(nil).Once()
	w.On("InsertRecordings", mock.MatchedBy(func(rows []RecordingRow) bool {
		return len(rows) == 1 && rows[0].Events == "H4sI" && rows[0].SessionID == "session-1"
	})).Return(nil).Once()

	b := NewBatcher(w, config.BatchConfig{Size: 100, FlushInterval: time.Hour})
	require.NoError(t, b.Produce(context.Background(), report(event.RecordScreen)))
	b.Close()

	w.AssertExpectations(t)
	rows := w.Calls[0].Arguments.Get(0).([]ReportRow)
	assert.NotContains(t, rows[0].Payload, "H4sI")
	assert.Equal(t, "recordScreen", rows[0].EventType)
}

func TestBatcher_FlushLoopAndFailedInsert(t *testing.T) {
	w := &mockWriter{}
	flushed := make(chan struct{}, 1)
	w.On("InsertReports", mock.Anything).Return(errors.New("clickhouse down")).Run(func(mock.Arguments) {
		select {
		case flushed <- struct{}{}:
		default:
		}
	})

	b := NewBatcher(w, config.BatchConfig{Size: 100, FlushInterval: 10 * time.Millisecond})
	defer b.Close()
	require.NoError(t, b.Produce(context.Background(), report(event.Error)))

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("flush loop did not run")
	}
}

func TestBatcher_CloseIsIdempotent(t *testing.T) {
	b := NewBatcher(&mockWriter{}, config.BatchConfig{Size: 10, FlushInterval: time.Hour})
	b.Close()
	assert.NotPanics(t, b.Close)
}
