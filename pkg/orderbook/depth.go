package orderbook

import (
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// PriceLevel aggregates the resting orders at one price.
type PriceLevel struct {
	Price  decimal.Decimal
	Qty    int64
	Orders int
}

// Depth is an aggregated view of both sides, best price first on each.
type Depth struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

func (b *Book) Depth() Depth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Depth{
		Bids: b.bids.depth(),
		Asks: b.asks.depth(),
	}
}

func (bs *bookSide) depth() []PriceLevel {
	levels := make([]PriceLevel, 0, bs.prices.Len())
	bs.each(func(price decimal.Decimal, q *deque.Deque[*Order]) bool {
		lvl := PriceLevel{Price: price, Orders: q.Len()}
		for i := 0; i < q.Len(); i++ {
			lvl.Qty += q.At(i).Qty
		}
		levels = append(levels, lvl)
		return true
	})
	return levels
}

// BestBid returns the highest bid price, if any.
func (d Depth) BestBid() (decimal.Decimal, bool) {
	if len(d.Bids) == 0 {
		return decimal.Zero, false
	}
	return d.Bids[0].Price, true
}

// BestAsk returns the lowest ask price, if any.
func (d Depth) BestAsk() (decimal.Decimal, bool) {
	if len(d.Asks) == 0 {
		return decimal.Zero, false
	}
	return d.Asks[0].Price, true
}
