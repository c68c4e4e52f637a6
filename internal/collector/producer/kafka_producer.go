package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gosight/gosight/websee/internal/collector/config"
	"github.com/gosight/gosight/websee/internal/collector/enricher"
	"github.com/gosight/gosight/websee/internal/event"
)

const (
	topicEvents = "events"
	topicReplay = "replay"
)

// KafkaProducer forwards reports to Kafka. Screen recordings go to the
// replay topic, everything else to the events topic.
type KafkaProducer struct {
	writers map[string]*kafka.Writer
	topics  map[string]string
}

func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	writers := make(map[string]*kafka.Writer)

	for name, topic := range cfg.Topics {
		writers[name] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: time.Millisecond * 100,
			Async:        true,
		}
	}

	return &KafkaProducer{
		writers: writers,
		topics:  cfg.Topics,
	}, nil
}

// TopicFor names the writer a report type is routed to.
func TopicFor(t event.Type) string {
	if t == event.RecordScreen {
		return topicReplay
	}
	return topicEvents
}

// Produce keys the message by project so a project's reports stay ordered.
func (p *KafkaProducer) Produce(ctx context.Context, r *enricher.EnrichedReport) error {
	name := TopicFor(r.Type)
	w, ok := p.writers[name]
	if !ok {
		return fmt.Errorf("kafka: no writer for %q", name)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.ProjectID),
		Value: data,
	})
}

func (p *KafkaProducer) Close() error {
	for _, w := range p.writers {
		w.Close()
	}
	return nil
}
