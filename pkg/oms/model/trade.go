package model

import (
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Trade is the archived form of a settled transaction.
type Trade struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Qty         int64           `json:"qty"`
	Price       decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	Buyer       string          `gorm:"index" json:"buyer"`
	Seller      string          `gorm:"index" json:"seller"`
	Aggressor   string          `json:"aggressor"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func NewTrade(tx ledger.Transaction) *Trade {
	return &Trade{
		ID:          tx.ID,
		Qty:         tx.Qty,
		Price:       tx.Price,
		Buyer:       tx.Buyer,
		Seller:      tx.Seller,
		Aggressor:   tx.Aggressor.String(),
		BuyOrderID:  tx.BuyOrderID.String(),
		SellOrderID: tx.SellOrderID.String(),
		ExecutedAt:  tx.Timestamp,
	}
}
