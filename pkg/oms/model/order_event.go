package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is one execution report for an order.
type OrderEvent struct {
	EventID   string          `gorm:"primaryKey" json:"event_id"`
	OrderID   string          `gorm:"index" json:"order_id"`
	Account   string          `json:"account"`
	Side      string          `json:"side"`
	ExecType  OrderExecType   `json:"exec_type"`
	Status    OrderStatus     `json:"status"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8)" json:"price"`
	LastQty   int64           `json:"last_qty"`
	LastPrice decimal.Decimal `gorm:"type:numeric(20,8)" json:"last_price"`
	LeavesQty int64           `json:"leaves_qty"`
	TradeID   int64           `json:"trade_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}

// NewEventID derives a unique event id; n disambiguates repeated trades.
func NewEventID(orderID string, execType OrderExecType, n int64) string {
	if n > 0 {
		return fmt.Sprintf("%s-%s-%d", orderID, execType, n)
	}
	return fmt.Sprintf("%s-%s", orderID, execType)
}
