package oms

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms/model"
	riskrule "github.com/joripage/matching-engine/pkg/oms/risk_rule"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/joripage/matching-engine/pkg/queue"
	"go.uber.org/zap"
)

type LoopState int32

const (
	WaitingForMessage LoopState = iota
	ProcessingOrder
	ProcessingControl
	Terminated
)

func (s LoopState) String() string {
	switch s {
	case WaitingForMessage:
		return "waiting"
	case ProcessingOrder:
		return "processing_order"
	case ProcessingControl:
		return "processing_control"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("LoopState(%d)", int32(s))
}

// Reporter receives everything the matching loop produces. It is called from
// the loop goroutine and must not block for long.
type Reporter interface {
	OnOrderReport(ctx context.Context, ev *model.OrderEvent)
	OnTrade(ctx context.Context, tx ledger.Transaction)
}

type nopReporter struct{}

func (nopReporter) OnOrderReport(context.Context, *model.OrderEvent) {}
func (nopReporter) OnTrade(context.Context, ledger.Transaction)      {}

// MatchingLoop is the only goroutine that mutates the book or settles trades.
type MatchingLoop struct {
	book      *orderbook.Book
	ledger    *ledger.Ledger
	txlog     *ledger.TransactionLog
	admission *riskrule.Admission
	intake    *queue.Queue[Message]
	reporter  Reporter
	logger    *logging.Logger

	state atomic.Int32
	now   func() time.Time
}

func NewMatchingLoop(
	book *orderbook.Book,
	l *ledger.Ledger,
	txlog *ledger.TransactionLog,
	admission *riskrule.Admission,
	intake *queue.Queue[Message],
	reporter Reporter,
	logger *logging.Logger,
) *MatchingLoop {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MatchingLoop{
		book:      book,
		ledger:    l,
		txlog:     txlog,
		admission: admission,
		intake:    intake,
		reporter:  reporter,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *MatchingLoop) State() LoopState {
	return LoopState(m.state.Load())
}

func (m *MatchingLoop) setState(s LoopState) {
	m.state.Store(int32(s))
}

// Run drains the intake queue until a Shutdown message is processed or ctx is
// done. A message already popped is always processed to completion.
func (m *MatchingLoop) Run(ctx context.Context) {
	defer m.setState(Terminated)

	for {
		m.setState(WaitingForMessage)
		msg, err := m.intake.Pop(ctx)
		if err != nil {
			m.logger.Info(ctx, "matching loop stopped", zap.Error(err))
			return
		}

		switch msg := msg.(type) {
		case NewOrder:
			m.setState(ProcessingOrder)
			reqCtx := logging.WithRequestID(context.Background(), msg.RequestID)
			res := m.processOrder(reqCtx, msg.Order)
			if msg.reply != nil {
				msg.reply <- res
			}
		case Cancel:
			m.setState(ProcessingControl)
			m.processCancel(logging.WithRequestID(context.Background(), msg.RequestID), msg.ID)
		case DeleteAccount:
			m.setState(ProcessingControl)
			err := m.deleteAccount(msg.Name)
			if msg.reply != nil {
				msg.reply <- err
			}
		case Shutdown:
			m.setState(ProcessingControl)
			m.logger.Info(ctx, "shutdown received", zap.Int("pending", m.intake.Len()))
			return
		default:
			m.logger.Warn(ctx, "unknown message", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

func (m *MatchingLoop) processOrder(ctx context.Context, order *orderbook.Order) OrderResult {
	res := OrderResult{OrderID: order.ID}
	original := order.Qty

	if err := m.admit(order); err != nil {
		res.Err = err
		m.logger.Info(ctx, "order rejected",
			zap.Stringer("order_id", order.ID),
			zap.String("account", order.Account),
			zap.Error(err))
		m.reporter.OnOrderReport(ctx, m.orderEvent(order, model.ExecTypeRejected, model.OrderStatusRejected, func(ev *model.OrderEvent) {
			ev.Reason = err.Error()
		}))
		return res
	}

	res.Accepted = true
	m.reporter.OnOrderReport(ctx, m.orderEvent(order, model.ExecTypeNew, model.OrderStatusNew, nil))

	residual, fills := m.book.Match(order)
	for _, fill := range fills {
		tx := m.ledger.Settle(m.txlog, fill, m.now())
		res.Trades = append(res.Trades, tx)
		res.Filled += fill.Qty
		m.reportFill(ctx, order, original-res.Filled, fill, tx)
		m.reporter.OnTrade(ctx, tx)
	}
	res.Residual = residual

	if residual > 0 {
		if err := m.book.Insert(order); err != nil {
			// duplicate ids are screened out in admit, so this is a bug
			m.logger.Error(ctx, "rest residual", zap.Stringer("order_id", order.ID), zap.Error(err))
			return res
		}
		res.Rested = true
	}

	m.logger.Debug(ctx, "order processed",
		zap.Stringer("order_id", order.ID),
		zap.Int("trades", len(fills)),
		zap.Int64("residual", residual))
	return res
}

func (m *MatchingLoop) admit(order *orderbook.Order) error {
	if _, exists := m.book.Get(order.ID); exists {
		return fmt.Errorf("%w: %w", ErrOrderRejected, orderbook.ErrDuplicateOrderID)
	}
	if m.admission == nil {
		return nil
	}
	if err := m.admission.Check(order); err != nil {
		return fmt.Errorf("%w: %w", ErrOrderRejected, err)
	}
	return nil
}

func (m *MatchingLoop) reportFill(ctx context.Context, incoming *orderbook.Order, incomingLeaves int64, fill orderbook.MatchResult, tx ledger.Transaction) {
	status := model.OrderStatusPartiallyFilled
	if incomingLeaves == 0 {
		status = model.OrderStatusFilled
	}
	m.reporter.OnOrderReport(ctx, m.orderEvent(incoming, model.ExecTypeTrade, status, func(ev *model.OrderEvent) {
		ev.EventID = model.NewEventID(ev.OrderID, model.ExecTypeTrade, tx.ID)
		ev.LastQty = fill.Qty
		ev.LastPrice = fill.Price
		ev.LeavesQty = incomingLeaves
		ev.TradeID = tx.ID
	}))

	restingStatus := model.OrderStatusPartiallyFilled
	if fill.RestingRemaining == 0 {
		restingStatus = model.OrderStatusFilled
	}
	restingID := fill.RestingOrderID.String()
	m.reporter.OnOrderReport(ctx, &model.OrderEvent{
		EventID:   model.NewEventID(restingID, model.ExecTypeTrade, tx.ID),
		OrderID:   restingID,
		Account:   fill.RestingAccount,
		Side:      fill.RestingOrderID.Side.String(),
		ExecType:  model.ExecTypeTrade,
		Status:    restingStatus,
		Price:     fill.Price,
		LastQty:   fill.Qty,
		LastPrice: fill.Price,
		LeavesQty: fill.RestingRemaining,
		TradeID:   tx.ID,
		Timestamp: tx.Timestamp,
	})
}

func (m *MatchingLoop) processCancel(ctx context.Context, id orderbook.OrderID) CancelResult {
	res := CancelResult{OrderID: id}

	// the loop is the only writer, so the order cannot change between Get and Remove
	order, ok := m.book.Get(id)
	if !ok || !m.book.Remove(id) {
		m.logger.Debug(ctx, "cancel target not resting", zap.Stringer("order_id", id))
		return res
	}
	res.Found = true
	res.Leaves = order.Qty

	m.reporter.OnOrderReport(ctx, m.orderEvent(&order, model.ExecTypeCanceled, model.OrderStatusCanceled, nil))
	return res
}

// deleteAccount refuses while the account rests orders; a later fill would
// otherwise recreate it with a negative balance.
func (m *MatchingLoop) deleteAccount(name string) error {
	if n := m.book.CountByAccount(name); n > 0 {
		return fmt.Errorf("%w: %s has %d", ErrAccountHasOrders, name, n)
	}
	return m.ledger.Delete(name)
}

func (m *MatchingLoop) orderEvent(order *orderbook.Order, execType model.OrderExecType, status model.OrderStatus, fn func(ev *model.OrderEvent)) *model.OrderEvent {
	id := order.ID.String()
	ev := &model.OrderEvent{
		EventID:   model.NewEventID(id, execType, 0),
		OrderID:   id,
		Account:   order.Account,
		Side:      order.Side.String(),
		ExecType:  execType,
		Status:    status,
		Price:     order.Price,
		LeavesQty: order.Qty,
		Timestamp: m.now(),
	}
	if fn != nil {
		fn(ev)
	}
	return ev
}
