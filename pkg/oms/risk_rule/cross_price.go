package riskrule

import (
	"fmt"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type RestingChecker interface {
	HasRestingAt(side orderbook.Side, account string, price decimal.Decimal) bool
}

// CrossPriceRule rejects an order when the same account already rests an
// order on the opposite side at exactly the same price.
type CrossPriceRule struct {
	book RestingChecker
}

func NewCrossPriceRule(book RestingChecker) *CrossPriceRule {
	return &CrossPriceRule{book: book}
}

func (r *CrossPriceRule) Check(order *orderbook.Order) error {
	if r.book.HasRestingAt(order.Side.Opposite(), order.Account, order.Price) {
		return fmt.Errorf("%w: %s %s @ %s", ErrCrossPrice, order.Account, order.Side.Opposite(), order.Price)
	}
	return nil
}

// DuplicatePriceRule rejects an order when the same account already rests an
// order on the same side at exactly the same price.
type DuplicatePriceRule struct {
	book RestingChecker
}

func NewDuplicatePriceRule(book RestingChecker) *DuplicatePriceRule {
	return &DuplicatePriceRule{book: book}
}

func (r *DuplicatePriceRule) Check(order *orderbook.Order) error {
	if r.book.HasRestingAt(order.Side, order.Account, order.Price) {
		return fmt.Errorf("%w: %s %s @ %s", ErrDuplicatePrice, order.Account, order.Side, order.Price)
	}
	return nil
}
