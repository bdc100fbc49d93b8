package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cull-io/cull/internal/logging"
)

// KafkaConfig configures the Kafka emitter.
type KafkaConfig struct {
	// Brokers is the list of seed brokers (host:port).
	Brokers []string

	// Topic is the topic deletion events are produced to.
	// Default: "reaper-events".
	Topic string
}

// Kafka emits events as JSON records to a Kafka topic, fire-and-forget.
// Delivery failures are logged and never propagate to the reaper.
type Kafka struct {
	client *kgo.Client
	topic  string
	log    *logging.Logger
}

// NewKafka creates a Kafka emitter.
func NewKafka(cfg KafkaConfig, log *logging.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: at least one broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "reaper-events"
	}
	if log == nil {
		log = logging.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("events: kafka client: %w", err)
	}

	return &Kafka{client: client, topic: cfg.Topic, log: log}, nil
}

// Emit produces the event asynchronously. The record key is the RSE so all
// events for one site land in one partition, preserving per-site order.
func (k *Kafka) Emit(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		k.log.Warnf("event marshal failed", map[string]any{
			"type":  string(ev.Type),
			"error": err.Error(),
		})
		return
	}

	rec := &kgo.Record{Key: []byte(ev.RSE), Value: value}
	k.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		if err != nil {
			k.log.Warnf("event delivery failed", map[string]any{
				"type":  string(ev.Type),
				"topic": k.topic,
				"error": err.Error(),
			})
		}
	})
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	err := k.client.Flush(ctx)
	k.client.Close()
	return err
}

var _ Emitter = (*Kafka)(nil)
