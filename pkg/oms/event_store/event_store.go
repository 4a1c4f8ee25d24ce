package eventstore

import "github.com/joripage/matching-engine/pkg/oms/model"

type EventStore interface {
	AddEvent(ev *model.OrderEvent)
	Events(orderID string) []*model.OrderEvent
	Latest(orderID string) (*model.OrderEvent, bool)
	DeleteByOrderID(orderID string)
}
