package kafkawrapper

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
}

type ConsumerConfig struct {
	Brokers      []string      `yaml:"brokers"`
	GroupID      string        `yaml:"group_id"`
	Topic        string        `yaml:"topic"`
	DLQTopic     string        `yaml:"dlq_topic"`
	MaxRetries   uint64        `yaml:"max_retries"`
	BackoffMin   time.Duration `yaml:"backoff_min"`
	BackoffMax   time.Duration `yaml:"backoff_max"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// BatchHandler processes messages in offset order. Returning an error retries
// the whole batch.
type BatchHandler func(ctx context.Context, msgs []Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerGroup reads one topic as a member of a consumer group and commits
// a batch once it was handled or parked on the dead-letter topic.
type ConsumerGroup struct {
	r   messageReader
	dlq *Producer
	cfg ConsumerConfig
	log *zap.SugaredLogger
}

func NewConsumerGroup(cfg ConsumerConfig) *ConsumerGroup {
	cfg = withConsumerDefaults(cfg)
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var dlq *Producer
	if cfg.DLQTopic != "" {
		dlq = NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	}
	return &ConsumerGroup{r: rd, dlq: dlq, cfg: cfg, log: zap.S().With("topic", cfg.Topic, "group", cfg.GroupID)}
}

func withConsumerDefaults(cfg ConsumerConfig) ConsumerConfig {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	return cfg
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil || cg.r == nil {
		return nil
	}
	if cg.dlq != nil {
		_ = cg.dlq.Close()
	}
	return cg.r.Close()
}

// Run consumes until ctx is done.
func (cg *ConsumerGroup) Run(ctx context.Context, handler BatchHandler) error {
	if cg == nil || cg.r == nil {
		return errNotInitialized
	}
	for {
		batch, err := cg.fetchBatch(ctx)
		if len(batch) > 0 {
			cg.process(ctx, batch, handler)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cg.log.Warnf("fetch: %v", err)
			select {
			case <-time.After(cg.cfg.BackoffMin):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// fetchBatch blocks for the first message, then collects more until the batch
// is full or BatchTimeout has passed.
func (cg *ConsumerGroup) fetchBatch(ctx context.Context) ([]kafka.Message, error) {
	first, err := cg.r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	fillCtx, cancel := context.WithTimeout(ctx, cg.cfg.BatchTimeout)
	defer cancel()
	for len(batch) < cg.cfg.BatchSize {
		m, err := cg.r.FetchMessage(fillCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func (cg *ConsumerGroup) process(ctx context.Context, batch []kafka.Message, handler BatchHandler) {
	wrapped := make([]Message, len(batch))
	for i, m := range batch {
		wrapped[i] = wrapMessage(m)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cg.cfg.BackoffMin
	bo.MaxInterval = cg.cfg.BackoffMax
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return handler(ctx, wrapped)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, cg.cfg.MaxRetries), ctx))
	if err != nil {
		if ctx.Err() != nil {
			// leave the batch uncommitted so it is redelivered
			return
		}
		cg.log.Errorf("handle batch of %d: %v", len(batch), err)
		if cg.dlq != nil {
			for _, m := range batch {
				if err := cg.dlq.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, fromHeaders(m.Headers)); err != nil {
					cg.log.Errorf("dead-letter offset %d: %v", m.Offset, err)
				}
			}
		}
	}

	if err := cg.r.CommitMessages(ctx, batch...); err != nil {
		cg.log.Warnf("commit: %v", err)
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   fromHeaders(m.Headers),
	}
}
