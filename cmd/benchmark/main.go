package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms"
	"github.com/joripage/matching-engine/pkg/oms/model"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	minPriceCents = 10_000
	maxPriceCents = 20_000
	minQty        = 1
	maxQty        = 100
)

// countingSink counts exported trades so the run can report match totals
// after the dispatcher drained.
type countingSink struct {
	trades atomic.Int64
	qty    atomic.Int64
}

func (s *countingSink) Name() string { return "counting" }

func (s *countingSink) Publish(_ context.Context, tx ledger.Transaction) error {
	s.trades.Add(1)
	s.qty.Add(tx.Qty)
	return nil
}

func randomOrder(r *rand.Rand, accounts int) *model.AddOrder {
	side := orderbook.BUY
	if r.Intn(2) == 0 {
		side = orderbook.SELL
	}
	cents := int64(r.Intn(maxPriceCents-minPriceCents+1) + minPriceCents)
	return &model.AddOrder{
		Account:  fmt.Sprintf("acct-%d", r.Intn(accounts)),
		Side:     side,
		Quantity: int64(r.Intn(maxQty-minQty+1) + minQty),
		Price:    decimal.New(cents, -2),
	}
}

func main() {
	var (
		numOrders  int
		numAcct    int
		producers  int
		idPolicy   string
		logLevel   string
		stackPrice bool
	)
	flag.IntVar(&numOrders, "orders", 1_000_000, "Number of orders to submit")
	flag.IntVar(&numAcct, "accounts", 1_000, "Number of trading accounts")
	flag.IntVar(&producers, "producers", 4, "Concurrent submitting goroutines")
	flag.StringVar(&idPolicy, "id-policy", string(orderbook.IDPolicyMonotonic), "Order id policy")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.BoolVar(&stackPrice, "allow-price-stacking", true, "Allow several orders per account and price")
	flag.Parse()

	if producers < 1 {
		producers = 1
	}

	logger := logging.NewLogger(logging.ParseLevel(logLevel))
	defer func() { _ = logger.Sync() }()
	ctx := context.Background()

	sink := &countingSink{}
	engine, err := oms.NewOMS(oms.Config{
		IDPolicy:           orderbook.IDPolicy(idPolicy),
		AllowPriceStacking: stackPrice,
	}, oms.WithLogger(logger), oms.WithTradeSinks(sink))
	if err != nil {
		logger.Fatal(ctx, "new oms", zap.Error(err))
	}

	for i := 0; i < numAcct; i++ {
		if err := engine.CreateAccount(fmt.Sprintf("acct-%d", i), decimal.NewFromInt(1_000_000_000), 1_000_000_000); err != nil {
			logger.Fatal(ctx, "create account", zap.Error(err))
		}
	}
	if err := engine.Start(ctx); err != nil {
		logger.Fatal(ctx, "start oms", zap.Error(err))
	}

	var (
		wg        sync.WaitGroup
		submitted atomic.Int64
	)
	start := time.Now()
	per := numOrders / producers
	for p := 0; p < producers; p++ {
		n := per
		if p == producers-1 {
			n = numOrders - per*(producers-1)
		}
		wg.Add(1)
		go func(seed int64, n int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < n; i++ {
				if _, err := engine.SubmitOrder(ctx, randomOrder(r, numAcct)); err != nil {
					logger.Warn(ctx, "submit", zap.Error(err))
					return
				}
				submitted.Add(1)
			}
		}(time.Now().UnixNano()+int64(p), n)
	}
	wg.Wait()
	enqueued := time.Since(start)

	_ = engine.Shutdown(ctx)
	engine.Wait()
	elapsed := time.Since(start)

	depth := engine.SnapshotBook()
	fmt.Println("--------")
	fmt.Printf("Total Orders     : %d\n", submitted.Load())
	fmt.Printf("Total Matches    : %d\n", sink.trades.Load())
	fmt.Printf("Total Matched Qty: %d\n", sink.qty.Load())
	fmt.Printf("Bid / Ask Levels : %d / %d\n", len(depth.Bids), len(depth.Asks))
	fmt.Printf("Enqueue Time     : %s\n", enqueued)
	fmt.Printf("Time Taken       : %s\n", elapsed)
	fmt.Printf("Orders / sec     : %.0f\n", float64(submitted.Load())/elapsed.Seconds())
}
