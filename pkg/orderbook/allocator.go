package orderbook

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type IDPolicy string

const (
	// IDPolicyMonotonic never reissues an id: one counter per side.
	IDPolicyMonotonic IDPolicy = "monotonic"
	// IDPolicyRestingMax derives the next id from the largest id still
	// resting on that side, so ids of removed orders can come back.
	IDPolicyRestingMax IDPolicy = "resting_max"
)

func ParseIDPolicy(s string) (IDPolicy, error) {
	switch IDPolicy(s) {
	case "", IDPolicyMonotonic:
		return IDPolicyMonotonic, nil
	case IDPolicyRestingMax:
		return IDPolicyRestingMax, nil
	}
	return "", fmt.Errorf("unknown id policy %q", s)
}

// Allocator hands out order ids and creation sequences.
type Allocator struct {
	book   *Book
	policy IDPolicy

	buySeq  atomic.Int64
	sellSeq atomic.Int64
	seq     atomic.Uint64
	now     func() time.Time
}

func NewAllocator(book *Book, policy IDPolicy) *Allocator {
	a := &Allocator{
		book:   book,
		policy: policy,
		now:    time.Now,
	}
	a.Sync()
	return a
}

func (a *Allocator) Policy() IDPolicy {
	return a.policy
}

// Sync raises the per-side counters to the largest id resting in the book.
func (a *Allocator) Sync() {
	for _, side := range []Side{BUY, SELL} {
		c := a.counter(side)
		floor := a.book.MaxSeq(side)
		for {
			cur := c.Load()
			if cur >= floor || c.CompareAndSwap(cur, floor) {
				break
			}
		}
	}
}

func (a *Allocator) counter(side Side) *atomic.Int64 {
	if side == BUY {
		return &a.buySeq
	}
	return &a.sellSeq
}

// NextID returns the id for a new order on side.
func (a *Allocator) NextID(side Side) OrderID {
	if a.policy == IDPolicyRestingMax {
		return OrderID{Side: side, Seq: a.book.MaxSeq(side) + 1}
	}
	return OrderID{Side: side, Seq: a.counter(side).Add(1)}
}

// NextSeq returns the next creation sequence; it orders equal-priced orders.
func (a *Allocator) NextSeq() uint64 {
	return a.seq.Add(1)
}

// NewOrder builds an order with a fresh id, sequence and timestamp.
func (a *Allocator) NewOrder(account string, side Side, qty int64, price decimal.Decimal) *Order {
	return &Order{
		ID:        a.NextID(side),
		Account:   account,
		Side:      side,
		Price:     price,
		Qty:       qty,
		Seq:       a.NextSeq(),
		CreatedAt: a.now(),
	}
}
