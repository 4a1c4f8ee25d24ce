package model

import (
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// AddOrder is a request to place a resting limit order.
type AddOrder struct {
	Account  string
	Side     orderbook.Side
	Quantity int64
	Price    decimal.Decimal
}

type CancelOrder struct {
	OrderID orderbook.OrderID
}
