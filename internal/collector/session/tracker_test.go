package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

func TestCounters(t *testing.T) {
	tests := []struct {
		typ    event.Type
		status event.Status
		want   []string
	}{
		{event.History, event.StatusOK, []string{"route_changes"}},
		{event.Click, event.StatusOK, []string{"click_count"}},
		{event.Error, event.StatusError, []string{"errors_count"}},
		{event.React, event.StatusError, []string{"errors_count"}},
		{event.XHR, event.StatusOK, nil},
		{event.Fetch, event.StatusError, []string{"http_errors_count"}},
		{event.WhiteScreen, event.StatusOK, nil},
		{event.WhiteScreen, event.StatusError, []string{"white_screen_count"}},
		{event.Performance, event.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Counters(tt.typ, tt.status))
		})
	}
}

func TestProduce_IgnoresReportsWithoutSession(t *testing.T) {
	tr := &Tracker{}
	err := tr.Produce(context.Background(), &enricher.EnrichedReport{Report: event.Report{Type: event.Click}})
	assert.NoError(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "session:abc", Key("abc"))
}
