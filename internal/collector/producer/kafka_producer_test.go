package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

func TestTopicFor(t *testing.T) {
	assert.Equal(t, "replay", TopicFor(event.RecordScreen))
	assert.Equal(t, "events", TopicFor(event.Error))
	assert.Equal(t, "events", TopicFor(event.Performance))
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(config.KafkaConfig{})
	assert.Error(t, err)
}

func TestProduce_UnknownWriter(t *testing.T) {
	p, err := NewKafkaProducer(config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topics:  map[string]string{"events": "websee-events"},
	})
	require.NoError(t, err)
	defer p.Close()

	err = p.Produce(context.Background(), &enricher.EnrichedReport{Report: event.Report{Type: event.RecordScreen}})
	assert.ErrorContains(t, err, "replay")
}
