package ledger

import (
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Settle moves coin from seller to buyer and USD the other way for one fill,
// then appends the trade to log. Balances and the log change under both
// locks so every transaction id maps to a ledger state that was reached.
func (l *Ledger) Settle(log *TransactionLog, fill orderbook.MatchResult, at time.Time) Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.mu.Lock()
	defer log.mu.Unlock()

	notional := fill.Price.Mul(decimal.NewFromInt(fill.Qty))

	buyer := l.account(fill.Buyer())
	seller := l.account(fill.Seller())
	buyer.Coin += fill.Qty
	buyer.USD = buyer.USD.Sub(notional)
	seller.Coin -= fill.Qty
	seller.USD = seller.USD.Add(notional)

	return log.append(Transaction{
		Qty:         fill.Qty,
		Price:       fill.Price,
		Timestamp:   at,
		Buyer:       buyer.Name,
		Seller:      seller.Name,
		Aggressor:   fill.Aggressor,
		BuyOrderID:  fill.BuyOrderID(),
		SellOrderID: fill.SellOrderID(),
	})
}
