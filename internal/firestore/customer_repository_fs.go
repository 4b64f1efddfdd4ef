package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kinara/internal/domain"
)

type CustomerRepositoryFS struct {
	Client *firestore.Client
}

func NewCustomerRepositoryFS(client *firestore.Client) *CustomerRepositoryFS {
	return &CustomerRepositoryFS{Client: client}
}

func (r *CustomerRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("customers")
}

func (r *CustomerRepositoryFS) CreateCustomer(ctx context.Context, c domain.Customer) (string, error) {
	if r.Client == nil {
		return "", errNilClient
	}
	stampCreated(&c.CreatedAt, &c.UpdatedAt)
	ref := r.col().NewDoc()
	if _, err := ref.Create(ctx, customerData(c)); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r *CustomerRepositoryFS) DeleteCustomer(ctx context.Context, id string) error {
	if r.Client == nil {
		return errNilClient
	}
	if _, err := r.col().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// FindCustomerByPhone returns the earliest customer registered with phone.
func (r *CustomerRepositoryFS) FindCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	if r.Client == nil {
		return domain.Customer{}, errNilClient
	}
	it := r.col().Where("phone", "==", phone).Documents(ctx)
	defer it.Stop()

	var (
		best  domain.Customer
		found bool
	)
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Customer{}, err
		}
		c := customerFromData(doc.Ref.ID, doc.Data())
		if !found || c.CreatedAt.Before(best.CreatedAt) {
			best, found = c, true
		}
	}
	if !found {
		return domain.Customer{}, domain.ErrNotFound
	}
	return best, nil
}

func (r *CustomerRepositoryFS) RecordRepeatOrder(ctx context.Context, id string, amount int64, at time.Time) error {
	if r.Client == nil {
		return errNilClient
	}
	_, err := r.col().Doc(id).Update(ctx, []firestore.Update{
		{Path: "totalOrders", Value: firestore.Increment(1)},
		{Path: "totalSpent", Value: firestore.Increment(amount)},
		{Path: "lastOrderDate", Value: at.UTC()},
		{Path: "updatedAt", Value: at.UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return domain.ErrNotFound
	}
	return err
}

func (r *CustomerRepositoryFS) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if r.Client == nil {
		return nil, errNilClient
	}
	it := r.col().OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer it.Stop()

	var out []domain.Customer
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, customerFromData(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}
