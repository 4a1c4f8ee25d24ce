package ledger

import (
	"sync"
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Transaction is a settled trade. It is never modified after it is appended.
type Transaction struct {
	ID          int64             `json:"id"`
	Qty         int64             `json:"qty"`
	Price       decimal.Decimal   `json:"price"`
	Timestamp   time.Time         `json:"timestamp"`
	Buyer       string            `json:"buyer"`
	Seller      string            `json:"seller"`
	Aggressor   orderbook.Side    `json:"aggressor"`
	BuyOrderID  orderbook.OrderID `json:"buy_order_id"`
	SellOrderID orderbook.OrderID `json:"sell_order_id"`
}

func (t Transaction) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Qty))
}

func (t Transaction) Involves(account string) bool {
	return t.Buyer == account || t.Seller == account
}

// TransactionLog is the append-only trade record. Ids are 1-based and equal
// the log length at append time.
type TransactionLog struct {
	mu  sync.RWMutex
	txs []Transaction
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		txs: make([]Transaction, 0, 1024),
	}
}

// append stamps the next id on tx and stores it. Caller holds t.mu.
func (t *TransactionLog) append(tx Transaction) Transaction {
	tx.ID = int64(len(t.txs)) + 1
	t.txs = append(t.txs, tx)
	return tx
}

func (t *TransactionLog) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.txs)
}

// Recent returns up to limit transactions, most recent first. A non-empty
// account keeps only trades where it was buyer or seller. limit <= 0 means all.
func (t *TransactionLog) Recent(account string, limit int) []Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Transaction
	for i := len(t.txs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		tx := t.txs[i]
		if account != "" && !tx.Involves(account) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Get returns the transaction with the given id.
func (t *TransactionLog) Get(id int64) (Transaction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 1 || id > int64(len(t.txs)) {
		return Transaction{}, false
	}
	return t.txs[id-1], true
}
