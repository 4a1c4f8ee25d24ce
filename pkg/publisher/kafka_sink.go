package publisher

import (
	"context"
	"strconv"

	"github.com/joripage/matching-engine/pkg/ledger"
)

type jsonPublisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

// KafkaSink publishes transactions as JSON keyed by trade id.
type KafkaSink struct {
	producer jsonPublisher
	topic    string
}

func NewKafkaSink(producer jsonPublisher, topic string) *KafkaSink {
	if topic == "" {
		topic = "engine.trades"
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Publish(ctx context.Context, tx ledger.Transaction) error {
	return s.producer.PublishJSON(ctx, s.topic, strconv.FormatInt(tx.ID, 10), tx, map[string]string{
		"type": "trade",
	})
}
