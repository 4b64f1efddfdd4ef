package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"kinara/internal/domain"
)

// OrderService is the admin side of orders: listing and status changes.
type OrderService struct {
	Orders OrderQuery
	Sink   PersistenceSink
}

func NewOrderService(orders OrderQuery, sink PersistenceSink) *OrderService {
	return &OrderService{Orders: orders, Sink: sink}
}

// List returns orders newest first, optionally only those in status.
func (s *OrderService) List(ctx context.Context, status string) ([]domain.Order, error) {
	orders, err := s.Orders.ListOrders(ctx, domain.TimeRange{})
	if err != nil {
		return nil, err
	}
	sortOrdersNewestFirst(orders)
	st, ok := domain.ParseOrderStatus(status)
	if !ok {
		return orders, nil
	}
	out := orders[:0]
	for _, o := range orders {
		if o.Status == st {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.Orders.GetOrder(ctx, id)
}

// UpdateStatus moves an order along the status state machine. Moves the state
// machine does not allow return an error wrapping domain.ErrIllegalTransition.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	to, ok := domain.ParseOrderStatus(status)
	if !ok {
		return domain.Order{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	o, err := s.Orders.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.Status.CanTransitionTo(to) {
		return o, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, o.Status, to)
	}
	if err := s.Sink.UpdateOrderStatus(ctx, id, o.Status, to); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			// someone else moved it first; report against what is stored now
			if cur, gerr := s.Orders.GetOrder(ctx, id); gerr == nil {
				o = cur
			}
		}
		return o, err
	}
	o.Status = to
	return o, nil
}

type OrderStats struct {
	Total          int
	Pending        int
	Processing     int
	Shipped        int
	Delivered      int
	Cancelled      int
	CompletionRate int // percent delivered
	CancelRate     int // percent cancelled
}

func ComputeOrderStats(orders []domain.Order) OrderStats {
	st := OrderStats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderPending:
			st.Pending++
		case domain.OrderProcessing:
			st.Processing++
		case domain.OrderShipped:
			st.Shipped++
		case domain.OrderDelivered:
			st.Delivered++
		case domain.OrderCancelled:
			st.Cancelled++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = roundPercent(float64(st.Delivered) / float64(st.Total) * 100)
		st.CancelRate = roundPercent(float64(st.Cancelled) / float64(st.Total) * 100)
	}
	return st
}

// roundPercent rounds halves up.
func roundPercent(x float64) int {
	return int(math.Floor(x + 0.5))
}

func sortOrdersNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
