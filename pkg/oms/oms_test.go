package oms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/oms/model"
	riskrule "github.com/joripage/matching-engine/pkg/oms/risk_rule"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func addOrder(account string, side orderbook.Side, qty int64, price string) *model.AddOrder {
	return &model.AddOrder{Account: account, Side: side, Quantity: qty, Price: dec(price)}
}

type recordingSink struct {
	mu  sync.Mutex
	txs []ledger.Transaction
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Publish(_ context.Context, tx ledger.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, tx)
	return nil
}

func (r *recordingSink) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.txs))
	for _, tx := range r.txs {
		out = append(out, tx.ID)
	}
	return out
}

// newSeededOMS builds the starting state of the interactive engine: three
// funded accounts and four resting orders.
func newSeededOMS(t *testing.T, cfg Config, opts ...Option) *OMS {
	t.Helper()
	s, err := NewOMS(cfg, opts...)
	require.NoError(t, err)

	require.NoError(t, s.CreateAccount("alice", dec("6000"), 43540))
	require.NoError(t, s.CreateAccount("bob", dec("300"), 2000))
	require.NoError(t, s.CreateAccount("charlie", dec("1235"), 1000))

	_, err = s.Seed(context.Background(), []*model.AddOrder{
		addOrder("alice", orderbook.BUY, 1, "20.50"),
		addOrder("bob", orderbook.BUY, 10, "22.50"),
		addOrder("charlie", orderbook.SELL, 8, "23.50"),
		addOrder("charlie", orderbook.SELL, 8, "25.50"),
	})
	require.NoError(t, err)
	return s
}

func start(t *testing.T, s *OMS) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		s.Wait()
	})
}

func TestSellCrossesBestBidAtRestingPrice(t *testing.T) {
	s := newSeededOMS(t, Config{})
	require.NoError(t, s.CreateAccount("dave", decimal.Zero, 5))
	start(t, s)

	res, err := s.SubmitOrderSync(context.Background(), addOrder("dave", orderbook.SELL, 5, "20.00"))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, int64(0), res.Residual)
	assert.False(t, res.Rested)
	require.Len(t, res.Trades, 1)

	tx := res.Trades[0]
	assert.Equal(t, int64(1), tx.ID)
	assert.Equal(t, int64(5), tx.Qty)
	assert.True(t, tx.Price.Equal(dec("22.50")), "price %s", tx.Price)
	assert.Equal(t, "bob", tx.Buyer)
	assert.Equal(t, "dave", tx.Seller)
	assert.Equal(t, orderbook.SELL, tx.Aggressor)

	depth := s.SnapshotBook()
	require.Len(t, depth.Bids, 2)
	assert.True(t, depth.Bids[0].Price.Equal(dec("22.50")))
	assert.Equal(t, int64(5), depth.Bids[0].Qty)
	assert.True(t, depth.Bids[1].Price.Equal(dec("20.50")))
	require.Len(t, depth.Asks, 2)
	assert.True(t, depth.Asks[0].Price.Equal(dec("23.50")))

	usd, coin, err := s.GetBalance("dave")
	require.NoError(t, err)
	assert.True(t, usd.Equal(dec("112.5")), "usd %s", usd)
	assert.Equal(t, int64(0), coin)

	usd, coin, err = s.GetBalance("bob")
	require.NoError(t, err)
	assert.True(t, usd.Equal(dec("187.5")), "usd %s", usd)
	assert.Equal(t, int64(2005), coin)

	assert.Len(t, s.SnapshotTransactions("", 0), 1)
}

func TestDuplicateRestingPriceRejected(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	// funded for the buy so the cross price rule is the one that rejects
	require.NoError(t, s.CreateAccount("alice", dec("1000"), 100))
	start(t, s)

	first, err := s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.SELL, 5, "30.00"))
	require.NoError(t, err)
	assert.True(t, first.Rested)

	before := s.SnapshotBook()
	_, err = s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.BUY, 5, "30.00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderRejected)
	assert.ErrorIs(t, err, riskrule.ErrCrossPrice)
	assert.Equal(t, before, s.SnapshotBook())
	assert.Empty(t, s.SnapshotTransactions("", 0))
}

func TestRepeatedSamePriceSellRejected(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("alice", decimal.Zero, 100))
	start(t, s)

	_, err = s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.SELL, 5, "30.00"))
	require.NoError(t, err)
	before := s.SnapshotBook()

	res, err := s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.SELL, 5, "30.00"))
	assert.ErrorIs(t, err, riskrule.ErrDuplicatePrice)
	assert.False(t, res.Accepted)
	assert.Equal(t, before, s.SnapshotBook())
}

func TestPriceStackingAllowed(t *testing.T) {
	s, err := NewOMS(Config{AllowPriceStacking: true})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("alice", decimal.Zero, 100))
	start(t, s)

	for i := 0; i < 2; i++ {
		res, err := s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.SELL, 5, "30.00"))
		require.NoError(t, err)
		assert.True(t, res.Rested)
	}
	depth := s.SnapshotBook()
	require.Len(t, depth.Asks, 1)
	assert.Equal(t, int64(10), depth.Asks[0].Qty)
	assert.Equal(t, 2, depth.Asks[0].Orders)
}

func TestRejectionLeavesBookAndLedgerUnchanged(t *testing.T) {
	s := newSeededOMS(t, Config{})
	start(t, s)
	before := s.SnapshotBook()

	res, err := s.SubmitOrderSync(context.Background(), addOrder("bob", orderbook.BUY, 100, "23.50"))
	assert.ErrorIs(t, err, riskrule.ErrInsufficientFunds)
	assert.False(t, res.Accepted)

	_, err = s.SubmitOrderSync(context.Background(), addOrder("charlie", orderbook.SELL, 1001, "23.50"))
	assert.ErrorIs(t, err, riskrule.ErrInsufficientCoin)

	_, err = s.SubmitOrderSync(context.Background(), addOrder("nobody", orderbook.SELL, 1, "23.50"))
	assert.ErrorIs(t, err, riskrule.ErrUnknownAccount)

	assert.Equal(t, before, s.SnapshotBook())
	usd, coin, _ := s.GetBalance("bob")
	assert.True(t, usd.Equal(dec("300")))
	assert.Equal(t, int64(2000), coin)

	evs := s.OrderEvents(res.OrderID)
	require.Len(t, evs, 1)
	assert.Equal(t, model.OrderStatusRejected, evs[0].Status)
	assert.NotEmpty(t, evs[0].Reason)
}

func TestCancelMissingOrderIsNoop(t *testing.T) {
	s := newSeededOMS(t, Config{})
	start(t, s)
	before := s.SnapshotBook()

	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: orderbook.OrderID{Side: orderbook.SELL, Seq: 999}}))
	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{}))

	// the loop keeps processing after the no-op cancels
	res, err := s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.BUY, 1, "21.00"))
	require.NoError(t, err)
	assert.True(t, res.Rested)

	after := s.SnapshotBook()
	assert.Equal(t, before.Asks, after.Asks)
	assert.Len(t, after.Bids, len(before.Bids)+1)
}

func TestCancelIsOrderedWithSubmissions(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("maker", decimal.Zero, 10))
	require.NoError(t, s.CreateAccount("taker", dec("1000"), 0))

	// queue everything before the loop runs
	id, err := s.SubmitOrder(context.Background(), addOrder("maker", orderbook.SELL, 10, "50"))
	require.NoError(t, err)
	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: id}))
	start(t, s)

	res, err := s.SubmitOrderSync(context.Background(), addOrder("taker", orderbook.BUY, 10, "50"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.True(t, res.Rested)

	evs := s.OrderEvents(id)
	require.Len(t, evs, 2)
	assert.Equal(t, model.ExecTypeNew, evs[0].ExecType)
	assert.Equal(t, model.ExecTypeCanceled, evs[1].ExecType)
	assert.Equal(t, int64(10), evs[1].LeavesQty)
}

func TestPartialFillRestsResidual(t *testing.T) {
	s := newSeededOMS(t, Config{})
	start(t, s)

	res, err := s.SubmitOrderSync(context.Background(), addOrder("alice", orderbook.BUY, 10, "24.00"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(8), res.Filled)
	assert.Equal(t, int64(2), res.Residual)
	assert.True(t, res.Rested)

	resting := s.book.Orders(orderbook.BUY)
	require.NotEmpty(t, resting)
	assert.Equal(t, res.OrderID, resting[0].ID)
	assert.Equal(t, int64(2), resting[0].Qty)

	evs := s.OrderEvents(res.OrderID)
	require.Len(t, evs, 2)
	assert.Equal(t, model.OrderStatusPartiallyFilled, evs[1].Status)
	assert.Equal(t, int64(2), evs[1].LeavesQty)
	assert.Equal(t, int64(1), evs[1].TradeID)
}

func TestSubmitValidatesInput(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)

	for _, o := range []*model.AddOrder{
		nil,
		addOrder("", orderbook.BUY, 1, "1"),
		addOrder("a", orderbook.Side(0), 1, "1"),
		addOrder("a", orderbook.BUY, 0, "1"),
		addOrder("a", orderbook.BUY, 1, "0"),
		addOrder("a", orderbook.SELL, 1, "-2"),
	} {
		_, err := s.SubmitOrder(context.Background(), o)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, s.intake.Len())
}

func TestPriceBandAndTickSize(t *testing.T) {
	s, err := NewOMS(Config{
		PriceFloor: dec("10"),
		PriceCeil:  dec("100"),
		TickSizes:  []riskrule.TickSizeConfig{{MaxPrice: decimal.Zero, Step: dec("0.5")}},
	})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("a", dec("10000"), 0))
	start(t, s)

	_, err = s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "101"))
	assert.ErrorIs(t, err, riskrule.ErrPriceLimit)
	_, err = s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "20.25"))
	assert.ErrorIs(t, err, riskrule.ErrTickSize)
	_, err = s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "20.5"))
	assert.NoError(t, err)
}

func TestShutdownIsOrderedAndFinal(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("a", dec("1000"), 0))

	id, err := s.SubmitOrder(context.Background(), addOrder("a", orderbook.BUY, 1, "10"))
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))

	_, err = s.SubmitOrder(context.Background(), addOrder("a", orderbook.BUY, 1, "11"))
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.ErrorIs(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: id}), ErrEngineStopped)

	require.NoError(t, s.Start(context.Background()))
	s.Wait()

	assert.Equal(t, Terminated, s.LoopState())
	_, ok := s.book.Get(id)
	assert.True(t, ok, "order queued before shutdown is processed")
}

func TestContextCancelStopsLoop(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	_, err = s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "1"))
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestSyncSubmitBeforeStart(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	_, err = s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "1"))
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSeedAfterStartFails(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	start(t, s)

	_, err = s.Seed(context.Background(), []*model.AddOrder{addOrder("a", orderbook.BUY, 1, "1")})
	assert.Error(t, err)
}

func TestUnknownIDPolicy(t *testing.T) {
	_, err := NewOMS(Config{IDPolicy: "random"})
	assert.Error(t, err)
}

func TestMonotonicIDsAreNeverReissued(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("a", dec("1000"), 0))
	start(t, s)

	first, err := s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "10"))
	require.NoError(t, err)
	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: first.OrderID}))

	second, err := s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "10"))
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, second.OrderID)
	assert.Greater(t, second.OrderID.Seq, first.OrderID.Seq)
}

func TestRestingMaxReissuesIDs(t *testing.T) {
	s, err := NewOMS(Config{IDPolicy: orderbook.IDPolicyRestingMax})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("a", dec("1000"), 0))
	require.NoError(t, s.CreateAccount("b", decimal.Zero, 10))
	start(t, s)

	first, err := s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "10"))
	require.NoError(t, err)
	assert.Equal(t, orderbook.OrderID{Side: orderbook.BUY, Seq: 1}, first.OrderID)
	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: first.OrderID}))

	// ids are allocated at submit time, so let the loop run the cancel first
	barrier, err := s.SubmitOrderSync(context.Background(), addOrder("b", orderbook.SELL, 1, "20"))
	require.NoError(t, err)
	require.True(t, barrier.Rested)
	_, resting := s.book.Get(first.OrderID)
	require.False(t, resting)

	second, err := s.SubmitOrderSync(context.Background(), addOrder("a", orderbook.BUY, 1, "10"))
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
}

func TestTradesAreExportedInOrder(t *testing.T) {
	sink := &recordingSink{}
	s, err := NewOMS(Config{}, WithTradeSinks(sink))
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("maker", decimal.Zero, 100))
	require.NoError(t, s.CreateAccount("taker", dec("100000"), 0))
	require.NoError(t, s.Start(context.Background()))

	for i := 0; i < 20; i++ {
		_, err := s.SubmitOrder(context.Background(), addOrder("maker", orderbook.SELL, 5, fmt.Sprintf("%d", 100+i)))
		require.NoError(t, err)
	}
	_, err = s.SubmitOrder(context.Background(), addOrder("taker", orderbook.BUY, 100, "200"))
	require.NoError(t, err)
	require.NoError(t, s.Shutdown(context.Background()))
	s.Wait()

	ids := sink.ids()
	require.Len(t, ids, 20)
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
}

type flakySink struct {
	recordingSink
	failures int
}

func (f *flakySink) Publish(ctx context.Context, tx ledger.Transaction) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("unavailable")
	}
	f.mu.Unlock()
	return f.recordingSink.Publish(ctx, tx)
}

func TestDispatcherRetriesSink(t *testing.T) {
	sink := &flakySink{failures: 2}
	d := NewDispatcher(nil, sink)
	d.Start(context.Background())
	d.Enqueue(ledger.Transaction{ID: 1})
	d.Close()

	assert.Equal(t, []int64{1}, sink.ids())
}

func TestConcurrentProducersConserveBalances(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)

	const accounts = 8
	for i := 0; i < accounts; i++ {
		require.NoError(t, s.CreateAccount(fmt.Sprintf("acct-%d", i), dec("100000"), 1000))
	}
	start(t, s)

	var wg sync.WaitGroup
	for i := 0; i < accounts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("acct-%d", i)
			for j := 0; j < 50; j++ {
				side := orderbook.BUY
				if (i+j)%2 == 0 {
					side = orderbook.SELL
				}
				price := fmt.Sprintf("%d", 95+(i*7+j)%10)
				_, _ = s.SubmitOrderSync(context.Background(), addOrder(name, side, int64(1+j%5), price))
			}
		}(i)
	}
	wg.Wait()

	totalUSD := decimal.Zero
	var totalCoin int64
	for _, a := range s.Accounts() {
		totalUSD = totalUSD.Add(a.USD)
		totalCoin += a.Coin
	}
	assert.True(t, totalUSD.Equal(dec("800000")), "usd %s", totalUSD)
	assert.Equal(t, int64(8000), totalCoin)

	txs := s.SnapshotTransactions("", 0)
	for i, tx := range txs {
		assert.Equal(t, int64(len(txs)-i), tx.ID)
		assert.NotEqual(t, tx.Buyer, tx.Seller)
	}
}

func BenchmarkSubmitOrderSync(b *testing.B) {
	s, _ := NewOMS(Config{})
	_ = s.CreateAccount("maker", decimal.Zero, int64(b.N)+1)
	_ = s.CreateAccount("taker", decimal.NewFromInt(int64(b.N)*200), 0)
	_ = s.Start(context.Background())
	defer func() {
		_ = s.Shutdown(context.Background())
		s.Wait()
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side, account := orderbook.SELL, "maker"
		if i%2 == 1 {
			side, account = orderbook.BUY, "taker"
		}
		_, _ = s.SubmitOrderSync(context.Background(), &model.AddOrder{
			Account: account, Side: side, Quantity: 1, Price: decimal.NewFromInt(100),
		})
	}
}

func TestDeleteAccountWithRestingOrders(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("maker", decimal.Zero, 10))
	require.NoError(t, s.CreateAccount("taker", dec("1000"), 0))
	ids, err := s.Seed(context.Background(), []*model.AddOrder{addOrder("maker", orderbook.SELL, 5, "30")})
	require.NoError(t, err)

	// checked before the loop runs too
	assert.ErrorIs(t, s.DeleteAccount("maker"), ErrAccountHasOrders)
	start(t, s)
	assert.ErrorIs(t, s.DeleteAccount("maker"), ErrAccountHasOrders)

	// a fill against the resting order still settles into the account
	_, err = s.SubmitOrderSync(context.Background(), addOrder("taker", orderbook.BUY, 2, "30"))
	require.NoError(t, err)
	usd, coin, err := s.GetBalance("maker")
	require.NoError(t, err)
	assert.True(t, usd.Equal(dec("60")), usd.String())
	assert.Equal(t, int64(8), coin)

	// the cancel is queued ahead of the delete, so the delete goes through
	require.NoError(t, s.CancelOrder(context.Background(), &model.CancelOrder{OrderID: ids[0]}))
	require.NoError(t, s.DeleteAccount("maker"))
	_, _, err = s.GetBalance("maker")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	assert.ErrorIs(t, s.DeleteAccount("maker"), ledger.ErrAccountNotFound)
}

func TestDeleteAccountAfterShutdown(t *testing.T) {
	s, err := NewOMS(Config{})
	require.NoError(t, err)
	require.NoError(t, s.CreateAccount("idle", decimal.Zero, 0))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))

	require.NoError(t, s.DeleteAccount("idle"))
	s.Wait()
	assert.Empty(t, s.Accounts())
}
