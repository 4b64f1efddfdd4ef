package services

import (
	"context"
	"time"

	"kinara/internal/domain"
)

// CatalogReader runs one-shot catalog queries. Products come back newest first.
type CatalogReader interface {
	ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// PersistenceSink accepts new customer and order records. UpdateOrderStatus
// writes to only if the stored status is still from; otherwise it returns an
// error wrapping domain.ErrIllegalTransition and leaves the order alone.
type PersistenceSink interface {
	CreateCustomer(ctx context.Context, c domain.Customer) (string, error)
	CreateOrder(ctx context.Context, o domain.Order) (string, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
}

// CustomerRemover lets the reconciler undo a customer created for a failed order.
type CustomerRemover interface {
	DeleteCustomer(ctx context.Context, id string) error
}

// AtomicSink writes a customer and its first order in one transaction.
type AtomicSink interface {
	CreateCustomerAndOrder(ctx context.Context, c domain.Customer, o domain.Order) (customerID, orderID string, err error)
}

// CustomerDirectory finds returning customers by phone.
type CustomerDirectory interface {
	FindCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error)
	RecordRepeatOrder(ctx context.Context, customerID string, amount int64, at time.Time) error
}

type PaymentRecorder interface {
	RecordPaymentReference(ctx context.Context, orderID, reference string) error
}

type OrderQuery interface {
	ListOrders(ctx context.Context, r domain.TimeRange) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

type CustomerQuery interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

type CatalogWriter interface {
	CreateProduct(ctx context.Context, p domain.Product) (string, error)
	CreateCategory(ctx context.Context, c domain.Category) (string, error)
}

// Store is everything a storefront backend provides. Both the SQLite and the
// Firestore backends implement it.
type Store interface {
	CatalogReader
	ProductReader
	CatalogWriter
	PersistenceSink
	CustomerRemover
	AtomicSink
	CustomerDirectory
	PaymentRecorder
	OrderQuery
	CustomerQuery
}
