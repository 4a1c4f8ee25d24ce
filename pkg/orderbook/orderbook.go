// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// bookSide keeps one side in price-time order: a heap of distinct prices and
// a FIFO of resting orders per price.
type bookSide struct {
	side   Side
	levels map[string]*deque.Deque[*Order]
	prices *PriceHeap

	// live id sequences, and a max-heap over them whose top is always live
	seqs    map[int64]struct{}
	seqHeap seqHeap
}

// seqHeap is a max-heap of id sequences. Removed sequences are dropped
// lazily once they reach the top.
type seqHeap []int64

func (h seqHeap) Len() int           { return len(h) }
func (h seqHeap) Less(i, j int) bool { return h[i] > h[j] }
func (h seqHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x any)        { *h = append(*h, x.(int64)) }
func (h *seqHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func newBookSide(side Side) *bookSide {
	less := func(i, j decimal.Decimal) bool { return i.LessThan(j) } // asks: min-heap
	if side == BUY {
		less = func(i, j decimal.Decimal) bool { return i.GreaterThan(j) } // bids: max-heap
	}
	return &bookSide{
		side:   side,
		levels: make(map[string]*deque.Deque[*Order]),
		prices: NewPriceHeap(less),
		seqs:   make(map[int64]struct{}),
	}
}

func (bs *bookSide) trackSeq(seq int64) {
	bs.seqs[seq] = struct{}{}
	heap.Push(&bs.seqHeap, seq)
}

func (bs *bookSide) untrackSeq(seq int64) {
	delete(bs.seqs, seq)
	for bs.seqHeap.Len() > 0 {
		if _, live := bs.seqs[bs.seqHeap[0]]; live {
			break
		}
		heap.Pop(&bs.seqHeap)
	}
	// stale entries below the top pile up under monotonic ids; rebuild now and then
	if bs.seqHeap.Len() > 2*len(bs.seqs)+64 {
		bs.seqHeap = bs.seqHeap[:0]
		for seq := range bs.seqs {
			bs.seqHeap = append(bs.seqHeap, seq)
		}
		heap.Init(&bs.seqHeap)
	}
}

func (bs *bookSide) count() int {
	return len(bs.seqs)
}

func (bs *bookSide) maxSeq() int64 {
	if bs.seqHeap.Len() == 0 {
		return 0
	}
	return bs.seqHeap[0]
}

func (bs *bookSide) push(order *Order) {
	bs.trackSeq(order.ID.Seq)

	key := priceKey(order.Price)
	q := bs.levels[key]
	if q == nil {
		q = &deque.Deque[*Order]{}
		bs.levels[key] = q
		heap.Push(bs.prices, order.Price)
	}

	// keep the level sorted by creation sequence; almost always the back
	i := q.Len()
	for i > 0 && q.At(i-1).Seq > order.Seq {
		i--
	}
	if i == q.Len() {
		q.PushBack(order)
		return
	}
	q.Insert(i, order)
}

// best returns the oldest order at the best price.
func (bs *bookSide) best() (*Order, bool) {
	price, ok := bs.prices.Peek()
	if !ok {
		return nil, false
	}
	q := bs.levels[priceKey(price)]
	if q == nil || q.Len() == 0 {
		return nil, false
	}
	return q.Front(), true
}

func (bs *bookSide) remove(order *Order) bool {
	key := priceKey(order.Price)
	q := bs.levels[key]
	if q == nil {
		return false
	}
	i := q.Index(func(o *Order) bool { return o == order })
	if i < 0 {
		return false
	}
	q.Remove(i)
	bs.untrackSeq(order.ID.Seq)
	if q.Len() == 0 {
		delete(bs.levels, key)
		bs.prices.Remove(order.Price)
	}
	return true
}

// each visits resting orders in priority order until fn returns false.
func (bs *bookSide) each(fn func(price decimal.Decimal, q *deque.Deque[*Order]) bool) {
	for _, price := range bs.prices.Sorted() {
		if !fn(price, bs.levels[priceKey(price)]) {
			return
		}
	}
}

// Book is the limit order book of a single instrument.
type Book struct {
	bids *bookSide
	asks *bookSide

	ordersByID map[OrderID]*Order

	mu sync.RWMutex
}

func NewBook() *Book {
	return &Book{
		bids:       newBookSide(BUY),
		asks:       newBookSide(SELL),
		ordersByID: make(map[OrderID]*Order),
	}
}

func (b *Book) sideOf(s Side) *bookSide {
	switch s {
	case BUY:
		return b.bids
	case SELL:
		return b.asks
	}
	panic(fmt.Sprintf("orderbook: %v", s))
}

// Insert rests order on its side behind every order of equal or better price.
func (b *Book) Insert(order *Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.insert(order)
}

func (b *Book) insert(order *Order) error {
	switch {
	case !order.Side.Valid():
		return fmt.Errorf("%w: %v", ErrInvalidSide, order.Side)
	case order.ID.IsZero() || order.ID.Side != order.Side:
		return fmt.Errorf("%w: %s", ErrInvalidOrderID, order.ID)
	case order.Qty <= 0:
		return ErrEmptyOrder
	}
	if _, ok := b.ordersByID[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID)
	}

	b.sideOf(order.Side).push(order)
	b.ordersByID[order.ID] = order
	return nil
}

// Remove takes the order off the book. A missing id, or the zero id, is a no-op.
func (b *Book) Remove(id OrderID) bool {
	if id.IsZero() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.ordersByID[id]
	if !ok {
		return false
	}
	delete(b.ordersByID, id)
	return b.sideOf(id.Side).remove(order)
}

// Match crosses incoming against the opposite side and returns the quantity
// left unfilled together with the fills, in execution order. incoming.Qty is
// decremented in place; the caller decides whether to rest the residual.
func (b *Book) Match(incoming *Order) (int64, []MatchResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.matchOrder(incoming)
}

func (b *Book) matchOrder(incoming *Order) (int64, []MatchResult) {
	var results []MatchResult
	counter := b.sideOf(incoming.Side.Opposite())

	for incoming.Qty > 0 {
		best, ok := counter.best()
		if !ok || !crosses(incoming, best.Price) {
			break
		}
		// self-trade prevention halts the scan, it never skips the order
		if best.Account == incoming.Account {
			break
		}

		matchQty := min(incoming.Qty, best.Qty)
		incoming.Qty -= matchQty
		best.Qty -= matchQty

		results = append(results, MatchResult{
			RestingOrderID:   best.ID,
			RestingAccount:   best.Account,
			IncomingOrderID:  incoming.ID,
			IncomingAccount:  incoming.Account,
			Aggressor:        incoming.Side,
			Price:            best.Price,
			Qty:              matchQty,
			RestingRemaining: best.Qty,
		})

		if best.Qty == 0 {
			delete(b.ordersByID, best.ID)
			counter.remove(best)
		}
	}

	return incoming.Qty, results
}

func crosses(incoming *Order, restingPrice decimal.Decimal) bool {
	if incoming.Side == BUY {
		return restingPrice.LessThanOrEqual(incoming.Price)
	}
	return restingPrice.GreaterThanOrEqual(incoming.Price)
}

// Get returns a copy of the resting order with that id.
func (b *Book) Get(id OrderID) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.ordersByID[id]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

func (b *Book) Len(side Side) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.sideOf(side).count()
}

// Orders returns copies of the resting orders of one side in priority order.
func (b *Book) Orders(side Side) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Order
	b.sideOf(side).each(func(_ decimal.Decimal, q *deque.Deque[*Order]) bool {
		for i := 0; i < q.Len(); i++ {
			out = append(out, *q.At(i))
		}
		return true
	})
	return out
}

// CountByAccount returns how many orders account rests on either side.
func (b *Book) CountByAccount(account string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, o := range b.ordersByID {
		if o.Account == account {
			n++
		}
	}
	return n
}

// HasRestingAt reports whether account rests an order on side at exactly price.
func (b *Book) HasRestingAt(side Side, account string, price decimal.Decimal) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q := b.sideOf(side).levels[priceKey(price)]
	if q == nil {
		return false
	}
	return q.Index(func(o *Order) bool { return o.Account == account }) >= 0
}

// MaxSeq returns the largest id sequence resting on side, 0 when empty.
func (b *Book) MaxSeq(side Side) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.sideOf(side).maxSeq()
}
