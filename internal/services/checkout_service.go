package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kinara/internal/cart"
	"kinara/internal/domain"
	"kinara/internal/events"
	applog "kinara/internal/log"
	"kinara/internal/payment"
	"kinara/internal/session"
)

type ContactForm struct {
	FullName         string
	PhoneNumber      string
	MpesaNumber      string
	DeliveryLocation string
	PayNow           bool
}

// SplitName puts the first whitespace-separated token in first and the rest,
// single-space joined, in last. It makes no attempt to understand names.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

type SubmissionStrategy string

const (
	// TwoStep writes the customer then the order and leaves the customer in place if the order fails.
	TwoStep SubmissionStrategy = "two-step"
	// Compensate deletes the customer again when the order write fails.
	Compensate SubmissionStrategy = "compensate"
	// Atomic writes both records in one transaction.
	Atomic SubmissionStrategy = "atomic"
)

func ParseSubmissionStrategy(s string) (SubmissionStrategy, bool) {
	switch st := SubmissionStrategy(strings.ToLower(strings.TrimSpace(s))); st {
	case TwoStep, Compensate, Atomic:
		return st, true
	}
	return "", false
}

type HomeMarket struct {
	City    string
	State   string
	Country string
}

var DefaultHomeMarket = HomeMarket{City: "Nairobi", State: "Nairobi", Country: "Kenya"}

type PaymentOutcome string

const (
	PaymentSkipped        PaymentOutcome = "skipped"
	PaymentInitiated      PaymentOutcome = "initiated"
	PaymentNotImplemented PaymentOutcome = "not_implemented"
	PaymentFailed         PaymentOutcome = "failed"
)

// Receipt describes a submitted checkout.
type Receipt struct {
	CustomerID     string
	ReusedCustomer bool
	Order          domain.Order
	Missing        []string
	Payment        PaymentOutcome
	PaymentMessage string
}

type ReconcilerConfig struct {
	Strategy SubmissionStrategy
	Dedupe   bool
	Home     HomeMarket
}

// Reconciler turns a contact form and resolved cart lines into one customer
// record and one pending order.
type Reconciler struct {
	sink    PersistenceSink
	gateway payment.Gateway
	events  events.Publisher
	cfg     ReconcilerConfig
	now     func() time.Time
}

func NewReconciler(sink PersistenceSink, gateway payment.Gateway, pub events.Publisher, cfg ReconcilerConfig) *Reconciler {
	if gateway == nil {
		gateway = payment.Stub{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if cfg.Strategy == "" {
		cfg.Strategy = Compensate
	}
	if cfg.Home == (HomeMarket{}) {
		cfg.Home = DefaultHomeMarket
	}
	if _, ok := sink.(AtomicSink); cfg.Strategy == Atomic && !ok {
		applog.Info(nil, "checkout.strategy.fallback", map[string]any{"want": Atomic, "use": Compensate})
		cfg.Strategy = Compensate
	}
	return &Reconciler{sink: sink, gateway: gateway, events: pub, cfg: cfg, now: time.Now}
}

func (r *Reconciler) Strategy() SubmissionStrategy { return r.cfg.Strategy }

func validateForm(f ContactForm) error {
	required := []struct{ field, value string }{
		{"fullName", f.FullName},
		{"phoneNumber", f.PhoneNumber},
		{"mpesaNumber", f.MpesaNumber},
		{"deliveryLocation", f.DeliveryLocation},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}
	return nil
}

// Submit persists the checkout. Validation failures return *ValidationError
// before any store call. Store failures return *CheckoutFailed, or
// *PartialSubmission when a customer record was left behind. done runs only
// after both records exist.
func (r *Reconciler) Submit(ctx context.Context, form ContactForm, lines []domain.ResolvedLine, done func()) (Receipt, error) {
	if len(lines) == 0 {
		return Receipt{}, &ValidationError{Field: "cart", Err: ErrEmptyCart}
	}
	if err := validateForm(form); err != nil {
		return Receipt{}, err
	}

	now := r.now().UTC()
	total := domain.LinesTotal(lines)
	first, last := SplitName(form.FullName)
	addr := domain.Address{
		Street:  strings.TrimSpace(form.DeliveryLocation),
		City:    r.cfg.Home.City,
		State:   r.cfg.Home.State,
		Country: r.cfg.Home.Country,
	}
	customer := domain.Customer{
		FirstName:     first,
		LastName:      last,
		Phone:         strings.TrimSpace(form.PhoneNumber),
		Addresses:     []domain.CustomerAddress{{Address: addr, IsDefault: true}},
		CreatedAt:     now,
		UpdatedAt:     now,
		TotalOrders:   1,
		TotalSpent:    total,
		LastOrderDate: &now,
	}
	order := domain.Order{
		Items:           append([]domain.ResolvedLine(nil), lines...),
		TotalAmount:     total,
		Status:          domain.OrderPending,
		OrderType:       domain.OrderTypeOnline,
		ShippingAddress: addr,
		PaymentStatus:   domain.PaymentPending,
		PaymentMethod:   domain.PaymentMethodMpesa,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	rc := Receipt{Payment: PaymentSkipped}
	existing, found, err := r.findReturning(ctx, customer.Phone)
	if err != nil {
		return Receipt{}, err
	}
	if found {
		rc.CustomerID, rc.ReusedCustomer = existing.ID, true
		order, err = r.submitRepeat(ctx, existing, order)
	} else {
		rc.CustomerID, order, err = r.submitNew(ctx, customer, order)
	}
	if err != nil {
		applog.Error(nil, "checkout.submit.fail", err, map[string]any{"strategy": r.cfg.Strategy, "total": total})
		return Receipt{}, err
	}

	if form.PayNow {
		rc.Payment, rc.PaymentMessage = r.initiatePayment(ctx, &order, form.MpesaNumber)
	}
	rc.Order = order

	applog.Audit(nil, "checkout.submit", map[string]any{
		"order_id": order.ID, "customer_id": rc.CustomerID, "total": total,
		"lines": len(lines), "strategy": r.cfg.Strategy, "payment": rc.Payment,
	})
	if err := r.events.Publish(ctx, events.OrderCreatedPattern, events.NewOrderCreated(order)); err != nil {
		applog.Error(nil, "events.publish.fail", err, map[string]any{"order_id": order.ID})
	}
	if done != nil {
		done()
	}
	return rc, nil
}

func (r *Reconciler) findReturning(ctx context.Context, phone string) (domain.Customer, bool, error) {
	if !r.cfg.Dedupe {
		return domain.Customer{}, false, nil
	}
	dir, ok := r.sink.(CustomerDirectory)
	if !ok {
		return domain.Customer{}, false, nil
	}
	c, err := dir.FindCustomerByPhone(ctx, phone)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, &CheckoutFailed{Stage: StageCustomer, Err: err}
	}
	return c, true, nil
}

func (r *Reconciler) submitNew(ctx context.Context, c domain.Customer, o domain.Order) (string, domain.Order, error) {
	if r.cfg.Strategy == Atomic {
		cid, oid, err := r.sink.(AtomicSink).CreateCustomerAndOrder(ctx, c, o)
		if err != nil {
			return "", o, &CheckoutFailed{Stage: StageOrder, Err: err}
		}
		o.ID, o.CustomerID = oid, cid
		return cid, o, nil
	}

	cid, err := r.sink.CreateCustomer(ctx, c)
	if err != nil {
		return "", o, &CheckoutFailed{Stage: StageCustomer, Err: err}
	}
	o.CustomerID = cid
	oid, err := r.sink.CreateOrder(ctx, o)
	if err == nil {
		o.ID = oid
		return cid, o, nil
	}

	if r.cfg.Strategy == Compensate {
		rm, ok := r.sink.(CustomerRemover)
		if ok {
			derr := rm.DeleteCustomer(ctx, cid)
			if derr == nil {
				return "", o, &CheckoutFailed{Stage: StageOrder, Err: err}
			}
			applog.Error(nil, "checkout.compensate.fail", derr, map[string]any{"customer_id": cid})
		}
	}
	return "", o, &PartialSubmission{CustomerID: cid, Err: err}
}

func (r *Reconciler) submitRepeat(ctx context.Context, c domain.Customer, o domain.Order) (domain.Order, error) {
	o.CustomerID = c.ID
	oid, err := r.sink.CreateOrder(ctx, o)
	if err != nil {
		return o, &CheckoutFailed{Stage: StageOrder, Err: err}
	}
	o.ID = oid
	// counters are denormalised; the order itself is the record of truth
	if err := r.sink.(CustomerDirectory).RecordRepeatOrder(ctx, c.ID, o.TotalAmount, o.CreatedAt); err != nil {
		applog.Error(nil, "checkout.customer.counters.fail", err, map[string]any{"customer_id": c.ID})
	}
	return o, nil
}

func (r *Reconciler) initiatePayment(ctx context.Context, o *domain.Order, msisdn string) (PaymentOutcome, string) {
	res, err := r.gateway.Initiate(ctx, payment.Request{
		OrderID: o.ID,
		Phone:   strings.TrimSpace(msisdn),
		Amount:  o.TotalAmount,
	})
	switch {
	case errors.Is(err, payment.ErrNotImplemented):
		return PaymentNotImplemented, "Online payment is not available yet. We will contact you to arrange M-Pesa payment."
	case err != nil:
		applog.Error(nil, "payment.initiate.fail", err, map[string]any{"order_id": o.ID})
		return PaymentFailed, "We could not start the M-Pesa payment. Your order is saved and we will contact you."
	}
	o.PaymentReference = res.Reference
	if rec, ok := r.sink.(PaymentRecorder); ok {
		if err := rec.RecordPaymentReference(ctx, o.ID, res.Reference); err != nil {
			applog.Error(nil, "payment.reference.save.fail", err, map[string]any{"order_id": o.ID, "ref": res.Reference})
		}
	}
	msg := res.Message
	if msg == "" {
		msg = "Check your phone to confirm the M-Pesa payment."
	}
	return PaymentInitiated, msg
}

// CheckoutService binds the reconciler to a browsing session: it resolves the
// session's cart against the catalog snapshot the session last saw and clears
// the cart once the order exists.
type CheckoutService struct {
	Sessions   session.Store
	Reconciler *Reconciler
	Strict     bool
}

func NewCheckoutService(sessions session.Store, rec *Reconciler, strict bool) *CheckoutService {
	return &CheckoutService{Sessions: sessions, Reconciler: rec, Strict: strict}
}

func (s *CheckoutService) Checkout(ctx context.Context, sid string, form ContactForm) (Receipt, error) {
	sess, err := s.Sessions.Load(ctx, sid)
	if err != nil {
		return Receipt{}, fmt.Errorf("load session: %w", err)
	}
	if sess.Cart.IsEmpty() {
		return Receipt{}, &ValidationError{Field: "cart", Err: ErrEmptyCart}
	}

	var (
		lines   []domain.ResolvedLine
		missing []string
	)
	if s.Strict {
		if lines, err = sess.Cart.ResolveStrict(sess.Catalog); err != nil {
			return Receipt{}, err
		}
	} else {
		lines, missing = sess.Cart.Resolve(sess.Catalog)
	}

	rc, err := s.Reconciler.Submit(ctx, form, lines, sess.Cart.Clear)
	if err != nil {
		return Receipt{}, err
	}
	rc.Missing = missing

	sess.LastOrder = &session.PlacedOrder{
		OrderID:        rc.Order.ID,
		Total:          rc.Order.TotalAmount,
		ItemCount:      rc.Order.UnitCount(),
		Missing:        missing,
		Payment:        string(rc.Payment),
		PaymentMessage: rc.PaymentMessage,
		PlacedAt:       rc.Order.CreatedAt,
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		// the order exists; a stale cart is the lesser problem
		applog.Error(nil, "checkout.session.save.fail", err, map[string]any{"order_id": rc.Order.ID})
	}
	return rc, nil
}

// Preview is the checkout page's view of the session cart.
func (s *CheckoutService) Preview(ctx context.Context, sid string) (CartView, error) {
	sess, err := s.Sessions.Load(ctx, sid)
	if err != nil {
		return CartView{}, fmt.Errorf("load session: %w", err)
	}
	return BuildCartView(sess.Cart, sess.Catalog), nil
}

var _ cart.Catalog = (*domain.CatalogSnapshot)(nil)
