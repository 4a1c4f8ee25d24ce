package oms

import (
	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/joripage/matching-engine/pkg/orderbook"
)

// Message is one entry of the intake queue. The matching loop handles
// exactly these kinds, in arrival order.
type Message interface {
	isMessage()
}

type NewOrder struct {
	Order     *orderbook.Order
	RequestID string

	// reply, when set, receives the verdict once the order is processed.
	reply chan<- OrderResult
}

type Cancel struct {
	ID        orderbook.OrderID
	RequestID string
}

type Shutdown struct{}

// DeleteAccount removes an account that has nothing resting on the book.
type DeleteAccount struct {
	Name string

	reply chan<- error
}

func (NewOrder) isMessage()      {}
func (Cancel) isMessage()        {}
func (Shutdown) isMessage()      {}
func (DeleteAccount) isMessage() {}

// OrderResult is the matching loop's verdict on one order.
type OrderResult struct {
	OrderID  orderbook.OrderID
	Accepted bool
	Err      error

	Trades   []ledger.Transaction
	Filled   int64
	Residual int64
	Rested   bool
}

// CancelResult reports whether a cancel found its order resting.
type CancelResult struct {
	OrderID orderbook.OrderID
	Found   bool
	Leaves  int64
}
