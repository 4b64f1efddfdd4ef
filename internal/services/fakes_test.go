package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"kinara/internal/domain"
	"kinara/internal/payment"
)

// memStore is an in-memory Store with failure switches.
type memStore struct {
	mu         sync.Mutex
	seq        int
	products   map[string]domain.Product
	categories map[string]domain.Category
	customers  map[string]domain.Customer
	orders     map[string]domain.Order
	paymentRef map[string]string
	calls      []string

	failCreateCustomer error
	failCreateOrder    error
	failDelete         error
	failAtomic         error
	failFindByPhone    error
}

func newMemStore(products ...domain.Product) *memStore {
	s := &memStore{
		products:   map[string]domain.Product{},
		categories: map[string]domain.Category{},
		customers:  map[string]domain.Customer{},
		orders:     map[string]domain.Order{},
		paymentRef: map[string]string{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *memStore) ListProducts(_ context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ListProducts")
	var out []domain.Product
	for _, p := range s.products {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Category
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetProduct")
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreateProduct(_ context.Context, p domain.Product) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID("prod")
	s.products[p.ID] = p
	return p.ID, nil
}

func (s *memStore) CreateCategory(_ context.Context, c domain.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID("cat")
	s.categories[c.ID] = c
	return c.ID, nil
}

func (s *memStore) CreateCustomer(_ context.Context, c domain.Customer) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCustomer")
	if s.failCreateCustomer != nil {
		return "", s.failCreateCustomer
	}
	c.ID = s.nextID("cust")
	s.customers[c.ID] = c
	return c.ID, nil
}

func (s *memStore) CreateOrder(_ context.Context, o domain.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateOrder")
	if s.failCreateOrder != nil {
		return "", s.failCreateOrder
	}
	o.ID = s.nextID("ord")
	s.orders[o.ID] = o
	return o.ID, nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateOrderStatus")
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != from {
		return fmt.Errorf("%w: order is %s, not %s", domain.ErrIllegalTransition, o.Status, from)
	}
	o.Status = to
	s.orders[id] = o
	return nil
}

func (s *memStore) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("DeleteCustomer")
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.customers, id)
	return nil
}

func (s *memStore) CreateCustomerAndOrder(_ context.Context, c domain.Customer, o domain.Order) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCustomerAndOrder")
	if s.failAtomic != nil {
		return "", "", s.failAtomic
	}
	c.ID = s.nextID("cust")
	o.ID = s.nextID("ord")
	o.CustomerID = c.ID
	s.customers[c.ID] = c
	s.orders[o.ID] = o
	return c.ID, o.ID, nil
}

func (s *memStore) FindCustomerByPhone(_ context.Context, phone string) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindCustomerByPhone")
	if s.failFindByPhone != nil {
		return domain.Customer{}, s.failFindByPhone
	}
	for _, c := range s.customers {
		if c.Phone == phone {
			return c, nil
		}
	}
	return domain.Customer{}, domain.ErrNotFound
}

func (s *memStore) RecordRepeatOrder(_ context.Context, id string, amount int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("RecordRepeatOrder")
	c, ok := s.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.TotalOrders++
	c.TotalSpent += amount
	c.LastOrderDate = &at
	s.customers[id] = c
	return nil
}

func (s *memStore) RecordPaymentReference(_ context.Context, orderID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentRef[orderID] = ref
	return nil
}

func (s *memStore) ListOrders(_ context.Context, r domain.TimeRange) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if r.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memStore) ListCustomers(context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Customer
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out, nil
}

var _ Store = (*memStore)(nil)

// sinkOnly exposes just the PersistenceSink methods of a memStore.
type sinkOnly struct{ s *memStore }

func (o sinkOnly) CreateCustomer(ctx context.Context, c domain.Customer) (string, error) {
	return o.s.CreateCustomer(ctx, c)
}
func (o sinkOnly) CreateOrder(ctx context.Context, ord domain.Order) (string, error) {
	return o.s.CreateOrder(ctx, ord)
}
func (o sinkOnly) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	return o.s.UpdateOrderStatus(ctx, id, from, to)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initiate(ctx context.Context, req payment.Request) (payment.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Result), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, pattern string, data any) error {
	args := m.Called(ctx, pattern, data)
	return args.Error(0)
}

var (
	productA = domain.Product{ID: "A", Name: "Mono Panel 400W", Price: 1000, Stock: 12, Images: []domain.ProductImage{{Data: "a.jpg"}}}
	productB = domain.Product{ID: "B", Name: "Charge Controller", Price: 2500, Stock: 3}
)

func validForm() ContactForm {
	return ContactForm{
		FullName:         "Grace Wanjiru Mwangi",
		PhoneNumber:      "254712345678",
		MpesaNumber:      "254712345678",
		DeliveryLocation: "Kilimani, Argwings Kodhek Rd",
	}
}
