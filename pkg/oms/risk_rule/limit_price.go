package riskrule

import (
	"fmt"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// LimitPriceRule keeps prices inside [floor, ceil]. A zero bound is open.
type LimitPriceRule struct {
	ceil  decimal.Decimal
	floor decimal.Decimal
}

func NewLimitPriceRule(floor, ceil decimal.Decimal) *LimitPriceRule {
	return &LimitPriceRule{floor: floor, ceil: ceil}
}

func (r *LimitPriceRule) Check(order *orderbook.Order) error {
	if !r.ceil.IsZero() && order.Price.GreaterThan(r.ceil) {
		return fmt.Errorf("%w: %s above %s", ErrPriceLimit, order.Price, r.ceil)
	}
	if !r.floor.IsZero() && order.Price.LessThan(r.floor) {
		return fmt.Errorf("%w: %s below %s", ErrPriceLimit, order.Price, r.floor)
	}
	return nil
}
