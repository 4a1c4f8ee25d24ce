package eventstore

import (
	"sync"

	"github.com/joripage/matching-engine/pkg/oms/model"
)

// InMemoryEventStore keeps every execution report, grouped by order id.
// Order ids can be reissued under the resting_max id policy, so one id may
// carry the history of more than one order.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	orders map[string][]*model.OrderEvent
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		orders: make(map[string][]*model.OrderEvent),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[ev.OrderID] = append(s.orders[ev.OrderID], ev)
}

func (s *InMemoryEventStore) Events(orderID string) []*model.OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.orders[orderID]
	out := make([]*model.OrderEvent, len(evs))
	copy(out, evs)
	return out
}

func (s *InMemoryEventStore) Latest(orderID string) (*model.OrderEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.orders[orderID]
	if len(evs) == 0 {
		return nil, false
	}
	return evs[len(evs)-1], true
}

func (s *InMemoryEventStore) DeleteByOrderID(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orders, orderID)
}
