package oms

import (
	"context"

	"github.com/joripage/matching-engine/pkg/oms/model"
)

// OrderGateway delivers execution reports back to whoever submitted orders.
type OrderGateway interface {
	Start(ctx context.Context) error

	// oms to client
	OnOrderReport(ctx context.Context, ev *model.OrderEvent)
}

type nopGateway struct{}

func (nopGateway) Start(context.Context) error                      { return nil }
func (nopGateway) OnOrderReport(context.Context, *model.OrderEvent) {}
