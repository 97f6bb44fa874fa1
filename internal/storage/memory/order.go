// Package memory provides map-backed repositories. They carry the unit tests
// and the zero-infrastructure demo mode; production wiring uses postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/domain-escrow/internal/domain/order"
)

// OrderRepository implements order.Repository in process memory.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
}

var _ order.Repository = (*OrderRepository)(nil)

// NewOrderRepository returns an empty in-memory order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*order.Order)}
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = snapshot(o)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return snapshot(o), nil
}

func (r *OrderRepository) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.orders[o.ID] = snapshot(o)
	return nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*order.Order
	for _, o := range r.orders {
		if f.Match(o) {
			out = append(out, snapshot(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// snapshot deep-copies an order so stored state is never aliased by callers.
func snapshot(o *order.Order) *order.Order {
	cp := *o
	if o.Breakdown != nil {
		b := *o.Breakdown
		cp.Breakdown = &b
	}
	if o.Transfer != nil {
		t := *o.Transfer
		cp.Transfer = &t
	}
	if o.Payout != nil {
		p := *o.Payout
		cp.Payout = &p
	}
	if o.Dispute != nil {
		d := *o.Dispute
		if o.Dispute.ResolvedAt != nil {
			at := *o.Dispute.ResolvedAt
			d.ResolvedAt = &at
		}
		cp.Dispute = &d
	}
	cp.Timeline = append([]order.TimelineEntry(nil), o.Timeline...)
	return &cp
}
