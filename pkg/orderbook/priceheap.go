package orderbook

import (
	"container/heap"
	"sort"

	"github.com/shopspring/decimal"
)

// PriceHeap implements heap.Interface over the distinct prices of one book side.
type PriceHeap struct {
	prices []decimal.Decimal
	less   func(i, j decimal.Decimal) bool
	index  map[string]int // price key -> position in prices
}

func NewPriceHeap(less func(i, j decimal.Decimal) bool) *PriceHeap {
	return &PriceHeap{
		prices: []decimal.Decimal{},
		less:   less,
		index:  make(map[string]int),
	}
}

// priceKey is the canonical map key of a price; "20.5" and "20.50" collide.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

func (h PriceHeap) Len() int {
	return len(h.prices)
}

func (h PriceHeap) Less(i, j int) bool {
	return h.less(h.prices[i], h.prices[j])
}

func (h PriceHeap) Swap(i, j int) {
	h.prices[i], h.prices[j] = h.prices[j], h.prices[i]
	h.index[priceKey(h.prices[i])] = i
	h.index[priceKey(h.prices[j])] = j
}

func (h *PriceHeap) Push(x any) {
	price := x.(decimal.Decimal)
	key := priceKey(price)
	if _, ok := h.index[key]; ok {
		return
	}
	h.index[key] = len(h.prices)
	h.prices = append(h.prices, price)
}

func (h *PriceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.index, priceKey(price))
	return price
}

func (h *PriceHeap) Peek() (decimal.Decimal, bool) {
	if len(h.prices) == 0 {
		return decimal.Zero, false
	}
	return h.prices[0], true
}

func (h *PriceHeap) Contains(price decimal.Decimal) bool {
	_, ok := h.index[priceKey(price)]
	return ok
}

// Remove drops price from the heap wherever it sits.
func (h *PriceHeap) Remove(price decimal.Decimal) bool {
	i, ok := h.index[priceKey(price)]
	if !ok {
		return false
	}
	heap.Remove(h, i)
	return true
}

// Sorted returns the prices best first without touching the heap.
func (h *PriceHeap) Sorted() []decimal.Decimal {
	out := make([]decimal.Decimal, len(h.prices))
	copy(out, h.prices)
	sort.Slice(out, func(i, j int) bool { return h.less(out[i], out[j]) })
	return out
}
