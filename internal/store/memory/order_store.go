// Package memory holds an in-memory order store with the same
// compare-and-swap semantics as the postgres store. Used by tests and by
// local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/qteco/mall-mollie-bridge/internal/order"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]*order.Order
}

func NewStore() *Store {
	return &Store{orders: make(map[int64]*order.Order)}
}

func (s *Store) Create(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = s.nextID
	if o.State == "" {
		o.State = order.StatePending
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *Store) GetByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, order.ErrOrderNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.PaymentID == paymentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (s *Store) SetPaymentID(ctx context.Context, id int64, paymentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentID = paymentID
	o.UpdatedAt = time.Now()
	return nil
}

// MarkState applies the transition only while the order is still pending.
func (s *Store) MarkState(ctx context.Context, id int64, next order.State) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.State != order.StatePending {
		return false, nil
	}
	o.State = next
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) ListStalePending(ctx context.Context, limit int, olderThan time.Duration) ([]*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-olderThan)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*order.Order
	for _, o := range s.orders {
		if len(result) >= limit {
			break
		}
		if o.State == order.StatePending && o.PaymentID != "" && o.UpdatedAt.Before(cutoff) {
			cp := *o
			result = append(result, &cp)
		}
	}
	return result, nil
}
