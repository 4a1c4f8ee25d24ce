package oms

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	eventstore "github.com/joripage/matching-engine/pkg/oms/event_store"
	"github.com/joripage/matching-engine/pkg/oms/model"
	riskrule "github.com/joripage/matching-engine/pkg/oms/risk_rule"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/joripage/matching-engine/pkg/queue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	IDPolicy   orderbook.IDPolicy
	PriceFloor decimal.Decimal
	PriceCeil  decimal.Decimal
	TickSizes  []riskrule.TickSizeConfig

	// AllowPriceStacking lets an account rest several orders at one price on
	// the same side. The opposite side is always checked.
	AllowPriceStacking bool
}

type Option func(*OMS)

func WithLogger(logger *logging.Logger) Option {
	return func(s *OMS) { s.logger = logger }
}

func WithOrderGateway(gw OrderGateway) Option {
	return func(s *OMS) { s.orderGateway = gw }
}

func WithEventStore(store eventstore.EventStore) Option {
	return func(s *OMS) { s.eventstore = store }
}

func WithTradeSinks(sinks ...TradeSink) Option {
	return func(s *OMS) { s.sinks = append(s.sinks, sinks...) }
}

// OMS owns the book, the ledger and the transaction log of one market and
// serializes every order and cancel through a single matching loop.
type OMS struct {
	book      *orderbook.Book
	ledger    *ledger.Ledger
	txlog     *ledger.TransactionLog
	allocator *orderbook.Allocator
	intake    *queue.Queue[Message]
	loop      *MatchingLoop

	orderGateway OrderGateway
	eventstore   eventstore.EventStore
	sinks        []TradeSink
	dispatcher   *Dispatcher
	logger       *logging.Logger

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}

	matchCount atomic.Int64
	matchQty   atomic.Int64
}

func NewOMS(cfg Config, opts ...Option) (*OMS, error) {
	policy, err := orderbook.ParseIDPolicy(string(cfg.IDPolicy))
	if err != nil {
		return nil, err
	}

	s := &OMS{
		book:         orderbook.NewBook(),
		ledger:       ledger.NewLedger(),
		txlog:        ledger.NewTransactionLog(),
		intake:       queue.New[Message](),
		orderGateway: nopGateway{},
		eventstore:   eventstore.NewInMemoryEventStore(),
		logger:       logging.NewNopLogger(),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("oms")
	s.allocator = orderbook.NewAllocator(s.book, policy)
	s.dispatcher = NewDispatcher(s.logger.Named("dispatcher"), s.sinks...)

	// stateless rules first, then ledger, then book
	admission := riskrule.NewAdmission()
	if !cfg.PriceFloor.IsZero() || !cfg.PriceCeil.IsZero() {
		admission.Append(riskrule.NewLimitPriceRule(cfg.PriceFloor, cfg.PriceCeil))
	}
	if len(cfg.TickSizes) > 0 {
		admission.Append(riskrule.NewTickSizeRule(cfg.TickSizes))
	}
	admission.Append(
		riskrule.NewBalanceRule(s.ledger),
		riskrule.NewCrossPriceRule(s.book),
	)
	if !cfg.AllowPriceStacking {
		admission.Append(riskrule.NewDuplicatePriceRule(s.book))
	}

	s.loop = NewMatchingLoop(s.book, s.ledger, s.txlog, admission, s.intake, reporter{s}, s.logger.Named("loop"))
	return s, nil
}

// Start launches the gateway, the trade dispatcher and the matching loop.
// Cancelling ctx stops the loop after the message in flight.
func (s *OMS) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("oms already started")
	}
	if err := s.orderGateway.Start(ctx); err != nil {
		return fmt.Errorf("start order gateway: %w", err)
	}
	s.dispatcher.Start(ctx)

	go func() {
		defer close(s.done)
		s.loop.Run(ctx)
		s.stopped.Store(true)
		s.dispatcher.Close()
		s.logger.Info(ctx, "oms stopped",
			zap.Int64("match_count", s.matchCount.Load()),
			zap.Int64("match_qty", s.matchQty.Load()))
	}()

	s.logger.Info(ctx, "oms started", zap.String("id_policy", string(s.allocator.Policy())))
	return nil
}

// Wait blocks until the matching loop has exited and pending trades have been
// handed to the sinks.
func (s *OMS) Wait() {
	<-s.done
}

func (s *OMS) Done() <-chan struct{} {
	return s.done
}

func (s *OMS) LoopState() LoopState {
	return s.loop.State()
}

func validateAddOrder(addOrder *model.AddOrder) error {
	switch {
	case addOrder == nil:
		return fmt.Errorf("%w: nil order", ErrInvalidInput)
	case addOrder.Account == "":
		return fmt.Errorf("%w: empty account", ErrInvalidInput)
	case !addOrder.Side.Valid():
		return fmt.Errorf("%w: side %v", ErrInvalidInput, addOrder.Side)
	case addOrder.Quantity <= 0:
		return fmt.Errorf("%w: quantity %d", ErrInvalidInput, addOrder.Quantity)
	case !addOrder.Price.IsPositive():
		return fmt.Errorf("%w: price %s", ErrInvalidInput, addOrder.Price)
	}
	return nil
}

func (s *OMS) push(msg Message) error {
	if s.stopped.Load() {
		return ErrEngineStopped
	}
	if err := s.intake.Push(msg); err != nil {
		return ErrEngineStopped
	}
	return nil
}

// SubmitOrder assigns an id to the order and queues it for matching. The id
// is returned before admission runs; rejections are reported as events.
func (s *OMS) SubmitOrder(ctx context.Context, addOrder *model.AddOrder) (orderbook.OrderID, error) {
	if err := validateAddOrder(addOrder); err != nil {
		return orderbook.OrderID{}, err
	}
	order := s.allocator.NewOrder(addOrder.Account, addOrder.Side, addOrder.Quantity, addOrder.Price)
	if err := s.push(NewOrder{Order: order, RequestID: logging.RequestID(ctx)}); err != nil {
		return orderbook.OrderID{}, err
	}
	return order.ID, nil
}

// SubmitOrderSync queues the order and waits for the matching loop's verdict.
// A rejected order returns its result together with an ErrOrderRejected error.
func (s *OMS) SubmitOrderSync(ctx context.Context, addOrder *model.AddOrder) (OrderResult, error) {
	if err := validateAddOrder(addOrder); err != nil {
		return OrderResult{}, err
	}
	// nothing would answer before Start
	if !s.started.Load() {
		return OrderResult{}, ErrNotStarted
	}
	order := s.allocator.NewOrder(addOrder.Account, addOrder.Side, addOrder.Quantity, addOrder.Price)
	reply := make(chan OrderResult, 1)
	if err := s.push(NewOrder{Order: order, RequestID: logging.RequestID(ctx), reply: reply}); err != nil {
		return OrderResult{}, err
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-s.done:
		// the loop may have answered just before exiting
		select {
		case res := <-reply:
			return res, res.Err
		default:
		}
		return OrderResult{OrderID: order.ID}, ErrEngineStopped
	case <-ctx.Done():
		return OrderResult{OrderID: order.ID}, ctx.Err()
	}
}

// CancelOrder queues a cancel. It does not report whether the order was still
// resting; that shows up as a Canceled event.
func (s *OMS) CancelOrder(ctx context.Context, cancelOrder *model.CancelOrder) error {
	if cancelOrder == nil {
		return fmt.Errorf("%w: nil cancel", ErrInvalidInput)
	}
	return s.push(Cancel{ID: cancelOrder.OrderID, RequestID: logging.RequestID(ctx)})
}

// Shutdown queues a shutdown behind everything already submitted. Later
// submissions fail with ErrEngineStopped.
func (s *OMS) Shutdown(ctx context.Context) error {
	if s.stopped.Swap(true) {
		return nil
	}
	s.logger.Info(ctx, "shutdown requested", zap.Int("pending", s.intake.Len()))
	return s.intake.Push(Shutdown{})
}

// Seed rests orders directly on the book without admission or matching. It
// must run before Start.
func (s *OMS) Seed(ctx context.Context, orders []*model.AddOrder) ([]orderbook.OrderID, error) {
	if s.started.Load() {
		return nil, errors.New("seed after start")
	}
	ids := make([]orderbook.OrderID, 0, len(orders))
	for _, addOrder := range orders {
		if err := validateAddOrder(addOrder); err != nil {
			return ids, err
		}
		order := s.allocator.NewOrder(addOrder.Account, addOrder.Side, addOrder.Quantity, addOrder.Price)
		if err := s.book.Insert(order); err != nil {
			return ids, fmt.Errorf("seed %s: %w", order.ID, err)
		}
		ids = append(ids, order.ID)
		s.logger.Debug(ctx, "seeded order",
			zap.Stringer("order_id", order.ID),
			zap.String("account", order.Account),
			zap.Int64("qty", order.Qty),
			zap.Stringer("price", order.Price))
	}
	return ids, nil
}

func (s *OMS) SnapshotBook() orderbook.Depth {
	return s.book.Depth()
}

// SnapshotTransactions returns the most recent transactions first, only those
// involving account when it is not empty. limit <= 0 means all.
func (s *OMS) SnapshotTransactions(account string, limit int) []ledger.Transaction {
	return s.txlog.Recent(account, limit)
}

func (s *OMS) GetBalance(account string) (decimal.Decimal, int64, error) {
	bal, err := s.ledger.Balance(account)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return bal.USD, bal.Coin, nil
}

func (s *OMS) OrderEvents(orderID orderbook.OrderID) []*model.OrderEvent {
	return s.eventstore.Events(orderID.String())
}

func (s *OMS) CreateAccount(name string, usd decimal.Decimal, coin int64) error {
	if name == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidInput)
	}
	return s.ledger.Create(name, usd, coin)
}

// DeleteAccount fails with ErrAccountHasOrders while the account rests orders.
// Once the loop runs, the check is queued behind earlier orders and cancels.
func (s *OMS) DeleteAccount(name string) error {
	if s.started.Load() {
		reply := make(chan error, 1)
		if err := s.push(DeleteAccount{Name: name, reply: reply}); err != nil {
			// shutting down: let the loop drain before touching the book
			<-s.done
			return s.loop.deleteAccount(name)
		}
		select {
		case err := <-reply:
			return err
		case <-s.done:
			select {
			case err := <-reply:
				return err
			default:
			}
		}
	}
	return s.loop.deleteAccount(name)
}

func (s *OMS) Fund(name string, usd decimal.Decimal) error {
	return s.ledger.Fund(name, usd)
}

func (s *OMS) Withdraw(name string, usd decimal.Decimal) error {
	return s.ledger.Withdraw(name, usd)
}

func (s *OMS) DepositCoin(name string, coin int64) error {
	return s.ledger.DepositCoin(name, coin)
}

func (s *OMS) Accounts() []ledger.Account {
	return s.ledger.Accounts()
}

// reporter wires the matching loop's output into the event store, the order
// gateway and the trade dispatcher.
type reporter struct {
	s *OMS
}

func (r reporter) OnOrderReport(ctx context.Context, ev *model.OrderEvent) {
	r.s.eventstore.AddEvent(ev)
	r.s.orderGateway.OnOrderReport(ctx, ev)
}

func (r reporter) OnTrade(ctx context.Context, tx ledger.Transaction) {
	r.s.matchQty.Add(tx.Qty)
	if n := r.s.matchCount.Add(1); n%10000 == 0 {
		r.s.logger.Info(ctx, "match progress",
			zap.Int64("match_count", n),
			zap.Int64("match_qty", r.s.matchQty.Load()))
	}
	r.s.dispatcher.Enqueue(tx)
}
