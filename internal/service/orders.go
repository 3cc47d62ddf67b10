package service

import (
	"sync"
	"time"

	"github.com/boostgw/boostgw/internal/models"
	"github.com/google/uuid"
)

// OrderStore holds orders in memory, keyed by generated id. Orders are not
// persisted anywhere; a restart forgets them.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*models.Order
}

// Stats is an operator-facing order counter snapshot.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (s *OrderStore) Put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

// Get returns a copy of the order, so callers never see mid-settlement
// mutations.
func (s *OrderStore) Get(id uuid.UUID) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// SetStatus transitions the order. Terminal orders are left untouched.
func (s *OrderStore) SetStatus(id uuid.UUID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Terminal() {
		return
	}
	order.Status = status
}

// Settle records the outcome of the upstream submission.
func (s *OrderStore) Settle(id uuid.UUID, status, upstreamID, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Terminal() {
		return
	}

	now := time.Now().UTC()
	order.Status = status
	order.UpstreamID = upstreamID
	order.Error = errMsg
	order.SettledAt = &now
}

func (s *OrderStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:    len(s.orders),
		ByStatus: make(map[string]int),
	}
	for _, order := range s.orders {
		stats.ByStatus[order.Status]++
	}
	return stats
}
