package services

import (
	"context"
	"fmt"
	"time"

	"kinara/internal/cart"
	"kinara/internal/domain"
	"kinara/internal/session"
)

type CartLineView struct {
	ProductID string
	Name      string
	ImageRef  string
	UnitPrice int64
	Quantity  int
	Subtotal  int64
	Missing   bool
}

type CartView struct {
	Lines     []CartLineView
	ItemCount int
	Total     int64
	Missing   []string
}

func (v CartView) IsEmpty() bool { return len(v.Lines) == 0 }

// BuildCartView renders a ledger against a catalog in insertion order. Lines
// whose product is not in the catalog are flagged and priced at zero.
func BuildCartView(l *cart.Ledger, c cart.Catalog) CartView {
	v := CartView{ItemCount: l.ItemCount(), Total: l.Total(c)}
	for _, ln := range l.Lines() {
		lv := CartLineView{ProductID: ln.ProductID, Quantity: ln.Quantity}
		if e, ok := c.Lookup(ln.ProductID); ok {
			lv.Name, lv.ImageRef, lv.UnitPrice = e.Name, e.ImageRef, e.UnitPrice
			lv.Subtotal = e.UnitPrice * int64(ln.Quantity)
		} else {
			lv.Name, lv.Missing = ln.ProductID, true
			v.Missing = append(v.Missing, ln.ProductID)
		}
		v.Lines = append(v.Lines, lv)
	}
	return v
}

// CartService applies cart actions to the ledger held in a browsing session.
type CartService struct {
	Sessions session.Store
	Catalog  *CatalogService
	now      func() time.Time
}

func NewCartService(sessions session.Store, catalog *CatalogService) *CartService {
	return &CartService{Sessions: sessions, Catalog: catalog, now: time.Now}
}

func (s *CartService) load(ctx context.Context, sid string) (*session.Session, error) {
	sess, err := s.Sessions.Load(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Add puts qty units of a product in the cart. A product the session has not
// seen yet is fetched and added to the session's snapshot first, so unknown
// ids are rejected with domain.ErrNotFound.
func (s *CartService) Add(ctx context.Context, sid, productID string, qty int) error {
	sess, err := s.load(ctx, sid)
	if err != nil {
		return err
	}
	if _, ok := sess.Catalog.Lookup(productID); !ok {
		p, err := s.Catalog.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		sess.Catalog = sess.Catalog.Merge([]domain.Product{p}, s.now().UTC())
	}
	for i := 0; i < qty; i++ {
		sess.Cart.Add(productID)
	}
	return s.Sessions.Save(ctx, sess)
}

func (s *CartService) Remove(ctx context.Context, sid, productID string) error {
	sess, err := s.load(ctx, sid)
	if err != nil {
		return err
	}
	sess.Cart.Remove(productID)
	return s.Sessions.Save(ctx, sess)
}

// SetQuantity only touches products already in the cart.
func (s *CartService) SetQuantity(ctx context.Context, sid, productID string, qty int) error {
	sess, err := s.load(ctx, sid)
	if err != nil {
		return err
	}
	if sess.Cart.QuantityOf(productID) == 0 {
		return nil
	}
	sess.Cart.SetQuantity(productID, qty)
	return s.Sessions.Save(ctx, sess)
}

func (s *CartService) View(ctx context.Context, sid string) (CartView, error) {
	sess, err := s.load(ctx, sid)
	if err != nil {
		return CartView{}, err
	}
	return BuildCartView(sess.Cart, sess.Catalog), nil
}

// RememberCatalog records a listing the session was shown. Carts are priced
// against the most recent listing for each product.
func (s *CartService) RememberCatalog(ctx context.Context, sid string, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	sess, err := s.load(ctx, sid)
	if err != nil {
		return err
	}
	sess.Catalog = sess.Catalog.Merge(products, s.now().UTC())
	return s.Sessions.Save(ctx, sess)
}

func (s *CartService) ItemCount(ctx context.Context, sid string) int {
	sess, err := s.Sessions.Load(ctx, sid)
	if err != nil {
		return 0
	}
	return sess.Cart.ItemCount()
}

// LastOrder returns the session's most recent checkout if it was orderID.
func (s *CartService) LastOrder(ctx context.Context, sid, orderID string) (*session.PlacedOrder, error) {
	sess, err := s.load(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess.LastOrder == nil || sess.LastOrder.OrderID != orderID {
		return nil, domain.ErrNotFound
	}
	return sess.LastOrder, nil
}
