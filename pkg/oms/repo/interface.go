package repo

import (
	"context"

	"github.com/joripage/matching-engine/pkg/oms/model"
)

type ITrade interface {
	// BulkCreate skips trades that are already archived.
	BulkCreate(ctx context.Context, records []*model.Trade) error
	ListByAccount(ctx context.Context, account string, limit int) ([]*model.Trade, error)
}

type IOrderEvent interface {
	BulkCreate(ctx context.Context, records []*model.OrderEvent) error
	ListByOrderID(ctx context.Context, orderID string) ([]*model.OrderEvent, error)
}
