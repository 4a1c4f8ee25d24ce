package orderbook

import "github.com/shopspring/decimal"

// MatchResult is one crossing between the incoming order and a resting order.
// Price is always the resting order's price.
type MatchResult struct {
	RestingOrderID   OrderID
	RestingAccount   string
	IncomingOrderID  OrderID
	IncomingAccount  string
	Aggressor        Side
	Price            decimal.Decimal
	Qty              int64
	RestingRemaining int64
}

func (r MatchResult) Buyer() string {
	if r.Aggressor == BUY {
		return r.IncomingAccount
	}
	return r.RestingAccount
}

func (r MatchResult) Seller() string {
	if r.Aggressor == SELL {
		return r.IncomingAccount
	}
	return r.RestingAccount
}

func (r MatchResult) BuyOrderID() OrderID {
	if r.Aggressor == BUY {
		return r.IncomingOrderID
	}
	return r.RestingOrderID
}

func (r MatchResult) SellOrderID() OrderID {
	if r.Aggressor == SELL {
		return r.IncomingOrderID
	}
	return r.RestingOrderID
}

func (r MatchResult) Notional() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(r.Qty))
}
