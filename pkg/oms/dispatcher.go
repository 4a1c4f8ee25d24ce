package oms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/queue"
	"go.uber.org/zap"
)

// TradeSink exports settled transactions outside the process.
type TradeSink interface {
	Name() string
	Publish(ctx context.Context, tx ledger.Transaction) error
}

// Dispatcher fans transactions out to every sink on its own goroutine so a
// slow sink never holds up matching.
type Dispatcher struct {
	sinks      []TradeSink
	queue      *queue.Queue[ledger.Transaction]
	logger     *logging.Logger
	maxRetries uint64

	wg sync.WaitGroup
}

func NewDispatcher(logger *logging.Logger, sinks ...TradeSink) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		sinks:      sinks,
		queue:      queue.New[ledger.Transaction](),
		logger:     logger,
		maxRetries: 3,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

// Enqueue never blocks. Transactions arriving after Close are dropped.
func (d *Dispatcher) Enqueue(tx ledger.Transaction) {
	if len(d.sinks) == 0 {
		return
	}
	if err := d.queue.Push(tx); err != nil {
		d.logger.Warn(context.Background(), "dispatcher closed, trade not exported", zap.Int64("trade_id", tx.ID))
	}
}

func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Close stops intake and waits until everything queued has been published.
func (d *Dispatcher) Close() {
	d.queue.Close()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		tx, err := d.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) {
				d.logger.Warn(ctx, "dispatcher stopped", zap.Error(err), zap.Int("dropped", d.queue.Len()))
			}
			return
		}
		for _, sink := range d.sinks {
			d.publish(ctx, sink, tx)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, sink TradeSink, tx ledger.Transaction) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	op := func() error {
		return sink.Publish(ctx, tx)
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, d.maxRetries), ctx)); err != nil {
		d.logger.Error(ctx, "publish trade",
			zap.String("sink", sink.Name()),
			zap.Int64("trade_id", tx.ID),
			zap.Error(err))
	}
}
