package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms/model"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	StreamName         = "ENGINE"
	TradeSubject       = "ENGINE.trades"
	OrderEventsSubject = "ENGINE.orders"
)

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the engine stream when it does not exist yet.
func EnsureStream(js jetStream) error {
	if _, err := js.StreamInfo(StreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamName + ".*"},
	})
	return err
}

// NatsSink publishes transactions to JetStream. The trade id doubles as the
// message id so retries are deduplicated by the server.
type NatsSink struct {
	js jetStream
}

func NewNatsSink(js jetStream) *NatsSink {
	return &NatsSink{js: js}
}

func (s *NatsSink) Name() string {
	return "nats"
}

func (s *NatsSink) Publish(_ context.Context, tx ledger.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	if _, err := s.js.Publish(TradeSubject, data, nats.MsgId("trade-"+strconv.FormatInt(tx.ID, 10))); err != nil {
		return fmt.Errorf("nats publish trade %d: %w", tx.ID, err)
	}
	return nil
}

// NatsOrderGateway streams execution reports to JetStream without waiting
// for acknowledgements.
type NatsOrderGateway struct {
	js     jetStream
	logger *logging.Logger
}

func NewNatsOrderGateway(js jetStream, logger *logging.Logger) *NatsOrderGateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &NatsOrderGateway{js: js, logger: logger}
}

func (g *NatsOrderGateway) Start(context.Context) error {
	return EnsureStream(g.js)
}

func (g *NatsOrderGateway) OnOrderReport(ctx context.Context, ev *model.OrderEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		g.logger.Error(ctx, "marshal order event", zap.Error(err))
		return
	}
	if _, err := g.js.PublishAsync(OrderEventsSubject, data, nats.MsgId(ev.EventID)); err != nil {
		g.logger.Warn(ctx, "publish order event",
			zap.String("event_id", ev.EventID),
			zap.Error(err))
	}
}
