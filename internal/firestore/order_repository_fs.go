package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kinara/internal/domain"
)

type OrderRepositoryFS struct {
	Client *firestore.Client
}

func NewOrderRepositoryFS(client *firestore.Client) *OrderRepositoryFS {
	return &OrderRepositoryFS{Client: client}
}

func (r *OrderRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("orders")
}

func (r *OrderRepositoryFS) CreateOrder(ctx context.Context, o domain.Order) (string, error) {
	if r.Client == nil {
		return "", errNilClient
	}
	stampCreated(&o.CreatedAt, &o.UpdatedAt)
	ref := r.col().NewDoc()
	if _, err := ref.Create(ctx, orderData(o)); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// CreateCustomerAndOrder writes both documents in one transaction.
func (r *OrderRepositoryFS) CreateCustomerAndOrder(ctx context.Context, c domain.Customer, o domain.Order) (string, string, error) {
	if r.Client == nil {
		return "", "", errNilClient
	}
	stampCreated(&c.CreatedAt, &c.UpdatedAt)
	stampCreated(&o.CreatedAt, &o.UpdatedAt)
	custRef := r.Client.Collection("customers").NewDoc()
	orderRef := r.col().NewDoc()
	o.CustomerID = custRef.ID

	err := r.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(custRef, customerData(c)); err != nil {
			return err
		}
		return tx.Create(orderRef, orderData(o))
	})
	if err != nil {
		return "", "", err
	}
	return custRef.ID, orderRef.ID, nil
}

// UpdateOrderStatus re-reads the order inside a transaction so two admins
// cannot both move it away from the same status.
func (r *OrderRepositoryFS) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	if r.Client == nil {
		return errNilClient
	}
	ref := r.col().Doc(id)
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		cur := orderFromData(snap.Ref.ID, snap.Data()).Status
		if cur != from {
			return fmt.Errorf("%w: order is %s, not %s", domain.ErrIllegalTransition, cur, from)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if status.Code(err) == codes.NotFound {
		return domain.ErrNotFound
	}
	return err
}

func (r *OrderRepositoryFS) RecordPaymentReference(ctx context.Context, id, reference string) error {
	return r.update(ctx, id, []firestore.Update{{Path: "paymentReference", Value: reference}})
}

func (r *OrderRepositoryFS) update(ctx context.Context, id string, ups []firestore.Update) error {
	if r.Client == nil {
		return errNilClient
	}
	ups = append(ups, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})
	_, err := r.col().Doc(id).Update(ctx, ups)
	if status.Code(err) == codes.NotFound {
		return domain.ErrNotFound
	}
	return err
}

func (r *OrderRepositoryFS) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if r.Client == nil {
		return domain.Order{}, errNilClient
	}
	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}
	return orderFromData(snap.Ref.ID, snap.Data()), nil
}

// ListOrders returns orders created inside rng, newest first.
func (r *OrderRepositoryFS) ListOrders(ctx context.Context, rng domain.TimeRange) ([]domain.Order, error) {
	if r.Client == nil {
		return nil, errNilClient
	}
	q := r.col().Query
	if !rng.From.IsZero() {
		q = q.Where("createdAt", ">=", rng.From.UTC())
	}
	if !rng.To.IsZero() {
		q = q.Where("createdAt", "<", rng.To.UTC())
	}
	it := q.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer it.Stop()

	var out []domain.Order
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, orderFromData(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}
