package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kinara/internal/cart"
	"kinara/internal/domain"
	"kinara/internal/events"
	"kinara/internal/payment"
	"kinara/internal/session"
)

var fixedNow = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func newReconciler(sink PersistenceSink, cfg ReconcilerConfig, gw payment.Gateway, pub events.Publisher) *Reconciler {
	r := NewReconciler(sink, gw, pub, cfg)
	r.now = func() time.Time { return fixedNow }
	return r
}

func cart4500() []domain.ResolvedLine {
	l := cart.New()
	l.Add("A")
	l.Add("A")
	l.Add("B")
	lines, missing := l.Resolve(domain.NewCatalogSnapshot([]domain.Product{productA, productB}, fixedNow))
	if len(missing) > 0 {
		panic("fixture catalog incomplete")
	}
	return lines
}

func TestSplitName(t *testing.T) {
	cases := []struct{ in, first, last string }{
		{"Grace", "Grace", ""},
		{"Grace Wanjiru Mwangi", "Grace", "Wanjiru Mwangi"},
		{"  Grace   Wanjiru  ", "Grace", "Wanjiru"},
		{"", "", ""},
	}
	for _, c := range cases {
		f, l := SplitName(c.in)
		assert.Equal(t, c.first, f, c.in)
		assert.Equal(t, c.last, l, c.in)
	}
}

func TestReconciler_SubmitCreatesCustomerThenOrder(t *testing.T) {
	store := newMemStore()
	done := 0
	r := newReconciler(store, ReconcilerConfig{Strategy: TwoStep}, nil, nil)

	rc, err := r.Submit(context.Background(), validForm(), cart4500(), func() { done++ })
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, []string{"CreateCustomer", "CreateOrder"}, store.calls)

	require.Len(t, store.customers, 1)
	c := store.customers[rc.CustomerID]
	assert.Equal(t, "Grace", c.FirstName)
	assert.Equal(t, "Wanjiru Mwangi", c.LastName)
	assert.Equal(t, "254712345678", c.Phone)
	assert.Equal(t, int64(4500), c.TotalSpent)
	assert.Equal(t, 1, c.TotalOrders)
	require.NotNil(t, c.LastOrderDate)
	assert.Equal(t, fixedNow, *c.LastOrderDate)

	require.Len(t, store.orders, 1)
	o := store.orders[rc.Order.ID]
	assert.Equal(t, rc.CustomerID, o.CustomerID)
	assert.Equal(t, int64(4500), o.TotalAmount)
	assert.Equal(t, domain.LinesTotal(o.Items), o.TotalAmount)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "mpesa", o.PaymentMethod)
	assert.Equal(t, "online", o.OrderType)
	assert.Equal(t, domain.Address{Street: "Kilimani, Argwings Kodhek Rd", City: "Nairobi", State: "Nairobi", Country: "Kenya"}, o.ShippingAddress)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "A", o.Items[0].ProductID)
	assert.Equal(t, int64(1000), o.Items[0].UnitPrice)
	assert.Equal(t, "Mono Panel 400W", o.Items[0].ProductName)
	assert.Equal(t, PaymentSkipped, rc.Payment)
}

func TestReconciler_HomeMarketIsConfigurable(t *testing.T) {
	store := newMemStore()
	r := newReconciler(store, ReconcilerConfig{Home: HomeMarket{City: "Mombasa", State: "Mombasa", Country: "Kenya"}}, nil, nil)

	rc, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Mombasa", store.orders[rc.Order.ID].ShippingAddress.City)
}

func TestReconciler_ValidationMakesNoStoreCalls(t *testing.T) {
	blank := func(f func(*ContactForm)) ContactForm {
		form := validForm()
		f(&form)
		return form
	}
	cases := []struct {
		name  string
		form  ContactForm
		lines []domain.ResolvedLine
		field string
	}{
		{"empty cart", validForm(), nil, "cart"},
		{"no name", blank(func(f *ContactForm) { f.FullName = "  " }), cart4500(), "fullName"},
		{"no phone", blank(func(f *ContactForm) { f.PhoneNumber = "" }), cart4500(), "phoneNumber"},
		{"no mpesa", blank(func(f *ContactForm) { f.MpesaNumber = "" }), cart4500(), "mpesaNumber"},
		{"no location", blank(func(f *ContactForm) { f.DeliveryLocation = "\t" }), cart4500(), "deliveryLocation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			called := false
			r := newReconciler(store, ReconcilerConfig{}, nil, nil)

			_, err := r.Submit(context.Background(), tc.form, tc.lines, func() { called = true })
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Empty(t, store.calls)
			assert.False(t, called)
		})
	}

	_, err := newReconciler(newMemStore(), ReconcilerConfig{}, nil, nil).Submit(context.Background(), validForm(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestReconciler_CustomerFailureSkipsOrder(t *testing.T) {
	store := newMemStore()
	store.failCreateCustomer = errors.New("unavailable")
	r := newReconciler(store, ReconcilerConfig{Strategy: TwoStep}, nil, nil)

	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	var cf *CheckoutFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, StageCustomer, cf.Stage)
	assert.Equal(t, []string{"CreateCustomer"}, store.calls)
}

func TestReconciler_TwoStepOrderFailureLeavesCustomer(t *testing.T) {
	store := newMemStore()
	store.failCreateOrder = errors.New("deadline exceeded")
	called := false
	r := newReconciler(store, ReconcilerConfig{Strategy: TwoStep}, nil, nil)

	_, err := r.Submit(context.Background(), validForm(), cart4500(), func() { called = true })

	var ps *PartialSubmission
	require.ErrorAs(t, err, &ps)
	var cf *CheckoutFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, StageOrder, cf.Stage)
	assert.ErrorContains(t, err, "deadline exceeded")

	assert.Len(t, store.customers, 1)
	assert.Contains(t, store.customers, ps.CustomerID)
	assert.Empty(t, store.orders)
	assert.False(t, called)
	assert.NotContains(t, store.calls, "DeleteCustomer")
}

func TestReconciler_CompensateRemovesCustomer(t *testing.T) {
	store := newMemStore()
	store.failCreateOrder = errors.New("deadline exceeded")
	r := newReconciler(store, ReconcilerConfig{Strategy: Compensate}, nil, nil)

	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)

	var cf *CheckoutFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, StageOrder, cf.Stage)
	var ps *PartialSubmission
	assert.False(t, errors.As(err, &ps))
	assert.Empty(t, store.customers)
	assert.Empty(t, store.orders)
	assert.Equal(t, []string{"CreateCustomer", "CreateOrder", "DeleteCustomer"}, store.calls)
}

func TestReconciler_CompensateDeleteFailureIsPartial(t *testing.T) {
	store := newMemStore()
	store.failCreateOrder = errors.New("deadline exceeded")
	store.failDelete = errors.New("permission denied")
	r := newReconciler(store, ReconcilerConfig{Strategy: Compensate}, nil, nil)

	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)

	var ps *PartialSubmission
	require.ErrorAs(t, err, &ps)
	assert.Contains(t, store.customers, ps.CustomerID)
}

func TestReconciler_AtomicAllOrNothing(t *testing.T) {
	store := newMemStore()
	r := newReconciler(store, ReconcilerConfig{Strategy: Atomic}, nil, nil)
	assert.Equal(t, Atomic, r.Strategy())

	rc, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateCustomerAndOrder"}, store.calls)
	assert.Equal(t, rc.CustomerID, store.orders[rc.Order.ID].CustomerID)

	failing := newMemStore()
	failing.failAtomic = errors.New("aborted")
	_, err = newReconciler(failing, ReconcilerConfig{Strategy: Atomic}, nil, nil).
		Submit(context.Background(), validForm(), cart4500(), nil)
	var cf *CheckoutFailed
	require.ErrorAs(t, err, &cf)
	assert.Empty(t, failing.customers)
	assert.Empty(t, failing.orders)
}

func TestReconciler_AtomicFallsBackWithoutTransactionalSink(t *testing.T) {
	store := newMemStore()
	r := newReconciler(sinkOnly{store}, ReconcilerConfig{Strategy: Atomic}, nil, nil)
	assert.Equal(t, Compensate, r.Strategy())

	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateCustomer", "CreateOrder"}, store.calls)
}

func TestReconciler_CreateAlwaysByDefault(t *testing.T) {
	store := newMemStore()
	r := newReconciler(store, ReconcilerConfig{}, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
		require.NoError(t, err)
	}
	assert.Len(t, store.customers, 2)
	assert.NotContains(t, store.calls, "FindCustomerByPhone")
}

func TestReconciler_DedupeReusesCustomerByPhone(t *testing.T) {
	store := newMemStore()
	r := newReconciler(store, ReconcilerConfig{Dedupe: true}, nil, nil)

	first, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err)
	assert.False(t, first.ReusedCustomer)

	second, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err)
	assert.True(t, second.ReusedCustomer)
	assert.Equal(t, first.CustomerID, second.CustomerID)

	require.Len(t, store.customers, 1)
	c := store.customers[first.CustomerID]
	assert.Equal(t, 2, c.TotalOrders)
	assert.Equal(t, int64(9000), c.TotalSpent)
	assert.Len(t, store.orders, 2)
}

func TestReconciler_DedupeLookupFailure(t *testing.T) {
	store := newMemStore()
	store.failFindByPhone = errors.New("index missing")
	r := newReconciler(store, ReconcilerConfig{Dedupe: true}, nil, nil)

	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	var cf *CheckoutFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, StageCustomer, cf.Stage)
	assert.Empty(t, store.orders)
}

func TestReconciler_PayNowWithStubIsNotImplemented(t *testing.T) {
	store := newMemStore()
	called := false
	r := newReconciler(store, ReconcilerConfig{}, payment.Stub{}, nil)

	form := validForm()
	form.PayNow = true
	rc, err := r.Submit(context.Background(), form, cart4500(), func() { called = true })
	require.NoError(t, err)
	assert.Equal(t, PaymentNotImplemented, rc.Payment)
	assert.NotEmpty(t, rc.PaymentMessage)
	assert.True(t, called)
	assert.Len(t, store.orders, 1)
	assert.Equal(t, domain.PaymentPending, store.orders[rc.Order.ID].PaymentStatus)
}

func TestReconciler_PayNowInitiatesGateway(t *testing.T) {
	store := newMemStore()
	gw := new(MockGateway)
	gw.On("Initiate", mock.Anything, mock.MatchedBy(func(req payment.Request) bool {
		return req.Amount == 4500 && req.Phone == "254712345678" && req.OrderID != ""
	})).Return(payment.Result{Reference: "ws_CO_42", Message: "Enter your PIN"}, nil)

	r := newReconciler(store, ReconcilerConfig{}, gw, nil)
	form := validForm()
	form.PayNow = true
	rc, err := r.Submit(context.Background(), form, cart4500(), nil)
	require.NoError(t, err)
	gw.AssertExpectations(t)

	assert.Equal(t, PaymentInitiated, rc.Payment)
	assert.Equal(t, "Enter your PIN", rc.PaymentMessage)
	assert.Equal(t, "ws_CO_42", rc.Order.PaymentReference)
	assert.Equal(t, "ws_CO_42", store.paymentRef[rc.Order.ID])
}

func TestReconciler_PayNowGatewayError(t *testing.T) {
	store := newMemStore()
	gw := new(MockGateway)
	gw.On("Initiate", mock.Anything, mock.Anything).Return(payment.Result{}, errors.New("token request failed"))

	r := newReconciler(store, ReconcilerConfig{}, gw, nil)
	form := validForm()
	form.PayNow = true
	rc, err := r.Submit(context.Background(), form, cart4500(), nil)
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, rc.Payment)
	assert.Len(t, store.orders, 1)
}

func TestReconciler_PublishesOrderCreated(t *testing.T) {
	store := newMemStore()
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, events.OrderCreatedPattern, mock.MatchedBy(func(ev events.OrderCreated) bool {
		return ev.TotalAmount == 4500 && ev.ItemCount == 3
	})).Return(errors.New("broker down"))

	r := newReconciler(store, ReconcilerConfig{}, nil, pub)
	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.NoError(t, err, "publish failures do not fail checkout")
	pub.AssertExpectations(t)
}

func TestReconciler_NoEventOnFailure(t *testing.T) {
	store := newMemStore()
	store.failCreateCustomer = errors.New("unavailable")
	pub := new(MockPublisher)

	r := newReconciler(store, ReconcilerConfig{}, nil, pub)
	_, err := r.Submit(context.Background(), validForm(), cart4500(), nil)
	require.Error(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func sessionWithCart(t *testing.T, st session.Store, sid string, products []domain.Product, adds ...string) {
	t.Helper()
	sess, err := st.Load(context.Background(), sid)
	require.NoError(t, err)
	for _, id := range adds {
		sess.Cart.Add(id)
	}
	sess.Catalog = domain.NewCatalogSnapshot(products, fixedNow)
	require.NoError(t, st.Save(context.Background(), sess))
}

func TestCheckoutService_ClearsCartOnSuccess(t *testing.T) {
	sessions := session.NewMemoryStore()
	sessionWithCart(t, sessions, "sid", []domain.Product{productA, productB}, "A", "A", "B")
	store := newMemStore()
	svc := NewCheckoutService(sessions, newReconciler(store, ReconcilerConfig{}, nil, nil), false)

	rc, err := svc.Checkout(context.Background(), "sid", validForm())
	require.NoError(t, err)
	assert.Equal(t, int64(4500), rc.Order.TotalAmount)

	sess, _ := sessions.Load(context.Background(), "sid")
	assert.True(t, sess.Cart.IsEmpty())
	require.NotNil(t, sess.LastOrder)
	assert.Equal(t, rc.Order.ID, sess.LastOrder.OrderID)
	assert.Equal(t, int64(4500), sess.LastOrder.Total)
	assert.Equal(t, 3, sess.LastOrder.ItemCount)
}

func TestCheckoutService_FailureLeavesCartUntouched(t *testing.T) {
	sessions := session.NewMemoryStore()
	sessionWithCart(t, sessions, "sid", []domain.Product{productA, productB}, "A", "A", "B")
	store := newMemStore()
	store.failCreateOrder = errors.New("deadline exceeded")
	svc := NewCheckoutService(sessions, newReconciler(store, ReconcilerConfig{Strategy: TwoStep}, nil, nil), false)

	_, err := svc.Checkout(context.Background(), "sid", validForm())
	var ps *PartialSubmission
	require.ErrorAs(t, err, &ps)

	assert.Len(t, store.customers, 1)
	assert.Empty(t, store.orders)
	sess, _ := sessions.Load(context.Background(), "sid")
	assert.Equal(t, 2, sess.Cart.QuantityOf("A"))
	assert.Equal(t, 1, sess.Cart.QuantityOf("B"))
	assert.Nil(t, sess.LastOrder)
}

func TestCheckoutService_SoftResolutionDropsUnknownLines(t *testing.T) {
	sessions := session.NewMemoryStore()
	sessionWithCart(t, sessions, "sid", []domain.Product{productA}, "A", "A", "B")
	store := newMemStore()
	svc := NewCheckoutService(sessions, newReconciler(store, ReconcilerConfig{}, nil, nil), false)

	rc, err := svc.Checkout(context.Background(), "sid", validForm())
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, rc.Missing)
	assert.Equal(t, int64(2000), rc.Order.TotalAmount)
	require.Len(t, rc.Order.Items, 1)
}

func TestCheckoutService_StrictResolutionAbortsBeforeStore(t *testing.T) {
	sessions := session.NewMemoryStore()
	sessionWithCart(t, sessions, "sid", []domain.Product{productA}, "A", "B")
	store := newMemStore()
	svc := NewCheckoutService(sessions, newReconciler(store, ReconcilerConfig{}, nil, nil), true)

	_, err := svc.Checkout(context.Background(), "sid", validForm())
	var re *cart.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{"B"}, re.Missing)
	assert.Empty(t, store.calls)
}

func TestCheckoutService_EmptyCart(t *testing.T) {
	store := newMemStore()
	svc := NewCheckoutService(session.NewMemoryStore(), newReconciler(store, ReconcilerConfig{}, nil, nil), false)

	_, err := svc.Checkout(context.Background(), "nobody", validForm())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, store.calls)
}

func TestCheckoutService_AllLinesMissingIsEmptyCart(t *testing.T) {
	sessions := session.NewMemoryStore()
	sessionWithCart(t, sessions, "sid", nil, "ghost")
	store := newMemStore()
	svc := NewCheckoutService(sessions, newReconciler(store, ReconcilerConfig{}, nil, nil), false)

	_, err := svc.Checkout(context.Background(), "sid", validForm())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, store.calls)
}

func TestParseSubmissionStrategy(t *testing.T) {
	st, ok := ParseSubmissionStrategy(" Atomic ")
	assert.True(t, ok)
	assert.Equal(t, Atomic, st)
	_, ok = ParseSubmissionStrategy("eventually")
	assert.False(t, ok)
}
