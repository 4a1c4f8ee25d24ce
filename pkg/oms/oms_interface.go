package oms

import (
	"context"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/oms/model"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type IOMS interface {
	Start(ctx context.Context) error
	Wait()

	SubmitOrder(ctx context.Context, addOrder *model.AddOrder) (orderbook.OrderID, error)
	SubmitOrderSync(ctx context.Context, addOrder *model.AddOrder) (OrderResult, error)
	CancelOrder(ctx context.Context, cancelOrder *model.CancelOrder) error
	Shutdown(ctx context.Context) error

	SnapshotBook() orderbook.Depth
	SnapshotTransactions(account string, limit int) []ledger.Transaction
	GetBalance(account string) (decimal.Decimal, int64, error)
	OrderEvents(orderID orderbook.OrderID) []*model.OrderEvent

	CreateAccount(name string, usd decimal.Decimal, coin int64) error
	DeleteAccount(name string) error
	Fund(name string, usd decimal.Decimal) error
	Withdraw(name string, usd decimal.Decimal) error
	DepositCoin(name string, coin int64) error
	Accounts() []ledger.Account
}

var _ IOMS = (*OMS)(nil)
