// Package worker archives the engine's trade and order event streams into
// Postgres.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms/model"
	"github.com/joripage/matching-engine/pkg/oms/repo"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Worker struct {
	trade      repo.ITrade
	orderEvent repo.IOrderEvent
	logger     *logging.Logger

	fetchBatch int
	fetchWait  time.Duration
}

func NewWorker(r repo.IRepo, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Worker{
		trade:      r.Trade(),
		orderEvent: r.OrderEvent(),
		logger:     logger,
		fetchBatch: 100,
		fetchWait:  time.Second,
	}
}

// HandleTrades decodes JSON transactions and archives them in one batch.
// Undecodable payloads are logged and skipped.
func (w *Worker) HandleTrades(ctx context.Context, payloads [][]byte) error {
	records := make([]*model.Trade, 0, len(payloads))
	for _, data := range payloads {
		var tx ledger.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			w.logger.Warn(ctx, "skip malformed trade", zap.Error(err))
			continue
		}
		records = append(records, model.NewTrade(tx))
	}
	if err := w.trade.BulkCreate(ctx, records); err != nil {
		return fmt.Errorf("archive %d trades: %w", len(records), err)
	}
	return nil
}

func (w *Worker) HandleOrderEvents(ctx context.Context, payloads [][]byte) error {
	records := make([]*model.OrderEvent, 0, len(payloads))
	for _, data := range payloads {
		var ev model.OrderEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			w.logger.Warn(ctx, "skip malformed order event", zap.Error(err))
			continue
		}
		records = append(records, &ev)
	}
	if err := w.orderEvent.BulkCreate(ctx, records); err != nil {
		return fmt.Errorf("archive %d order events: %w", len(records), err)
	}
	return nil
}

// StartConsumer pulls from a durable JetStream consumer until ctx is done.
// A batch is acked only after it was archived.
func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string, handle func(context.Context, [][]byte) error) error {
	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msgs, err := sub.Fetch(w.fetchBatch, nats.MaxWait(w.fetchWait))
		if err != nil {
			if !errors.Is(err, nats.ErrTimeout) {
				w.logger.Warn(ctx, "fetch", zap.String("subject", subject), zap.Error(err))
			}
			continue
		}

		payloads := make([][]byte, len(msgs))
		for i, msg := range msgs {
			payloads[i] = msg.Data
		}
		if err := handle(ctx, payloads); err != nil {
			w.logger.Error(ctx, "handle batch", zap.String("subject", subject), zap.Error(err))
			for _, msg := range msgs {
				_ = msg.Nak()
			}
			continue
		}
		for _, msg := range msgs {
			_ = msg.Ack()
		}
	}
}

// RunKafka archives trades read from a Kafka topic.
func (w *Worker) RunKafka(ctx context.Context, cg *kafkawrapper.ConsumerGroup) error {
	return cg.Run(ctx, func(ctx context.Context, msgs []kafkawrapper.Message) error {
		payloads := make([][]byte, len(msgs))
		for i, m := range msgs {
			payloads[i] = m.Value
		}
		return w.HandleTrades(ctx, payloads)
	})
}
