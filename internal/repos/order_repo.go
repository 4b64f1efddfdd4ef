package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"kinara/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type orderRow struct {
	ID               string `db:"id"`
	CustomerID       string `db:"customer_id"`
	ItemsJSON        string `db:"items_json"`
	TotalAmount      int64  `db:"total_amount"`
	Status           string `db:"status"`
	OrderType        string `db:"order_type"`
	ShippingJSON     string `db:"shipping_json"`
	PaymentStatus    string `db:"payment_status"`
	PaymentMethod    string `db:"payment_method"`
	PaymentReference string `db:"payment_reference"`
	TrackingNumber   string `db:"tracking_number"`
	Notes            string `db:"notes"`
	CreatedAt        string `db:"created_at"`
	UpdatedAt        string `db:"updated_at"`
}

const orderCols = `id, customer_id, items_json, total_amount, status, order_type, shipping_json,
    payment_status, payment_method, payment_reference, tracking_number, notes, created_at, updated_at`

func (r orderRow) toDomain() (domain.Order, error) {
	o := domain.Order{
		ID: r.ID, CustomerID: r.CustomerID, TotalAmount: r.TotalAmount,
		Status: domain.OrderStatus(r.Status), OrderType: r.OrderType,
		PaymentStatus: domain.PaymentStatus(r.PaymentStatus), PaymentMethod: r.PaymentMethod,
		PaymentReference: r.PaymentReference, TrackingNumber: r.TrackingNumber, Notes: r.Notes,
		CreatedAt: parseTS(r.CreatedAt), UpdatedAt: parseTS(r.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(r.ItemsJSON), &o.Items); err != nil {
		return o, fmt.Errorf("order %s items: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.ShippingJSON), &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("order %s shipping address: %w", r.ID, err)
	}
	return o, nil
}

func (r *OrderRepo) CreateOrder(ctx context.Context, o domain.Order) (string, error) {
	o.ID = uuid.NewString()
	if err := insertOrder(ctx, r.db, o); err != nil {
		return "", err
	}
	return o.ID, nil
}

func insertOrder(ctx context.Context, ex sqlx.ExecerContext, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	_, err = ex.ExecContext(ctx, `
	  INSERT INTO orders(`+orderCols+`)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.CustomerID, string(items), o.TotalAmount, string(o.Status), o.OrderType, string(shipping),
		string(o.PaymentStatus), o.PaymentMethod, o.PaymentReference, o.TrackingNumber, o.Notes,
		formatTS(o.CreatedAt), formatTS(o.UpdatedAt))
	return err
}

// CreateCustomerAndOrder writes both records in one transaction; on error neither exists.
func (r *OrderRepo) CreateCustomerAndOrder(ctx context.Context, c domain.Customer, o domain.Order) (string, string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = tx.Rollback() }()

	c.ID = uuid.NewString()
	if err := insertCustomer(ctx, tx, c); err != nil {
		return "", "", fmt.Errorf("insert customer: %w", err)
	}
	o.ID = uuid.NewString()
	o.CustomerID = c.ID
	if err := insertOrder(ctx, tx, o); err != nil {
		return "", "", fmt.Errorf("insert order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	return c.ID, o.ID, nil
}

// UpdateOrderStatus moves an order from one status to another. The WHERE on the
// current status makes concurrent admin updates race safely: only the first wins.
func (r *OrderRepo) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTS(time.Now()), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var cur string
	if err := r.db.GetContext(ctx, &cur, `SELECT status FROM orders WHERE id = ?`, id); err != nil {
		return notFound(err)
	}
	return fmt.Errorf("%w: order is %s, not %s", domain.ErrIllegalTransition, cur, from)
}

func (r *OrderRepo) RecordPaymentReference(ctx context.Context, orderID, reference string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET payment_reference = ?, updated_at = ? WHERE id = ?`,
		reference, formatTS(time.Now()), orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id); err != nil {
		return domain.Order{}, notFound(err)
	}
	return row.toDomain()
}

// ListOrders returns orders created inside rng, newest first.
func (r *OrderRepo) ListOrders(ctx context.Context, rng domain.TimeRange) ([]domain.Order, error) {
	where := `1 = 1`
	args := []any{}
	if !rng.From.IsZero() {
		where += ` AND created_at >= ?`
		args = append(args, formatTS(rng.From))
	}
	if !rng.To.IsZero() {
		where += ` AND created_at < ?`
		args = append(args, formatTS(rng.To))
	}
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT `+orderCols+`
	  FROM orders
	  WHERE `+where+`
	  ORDER BY created_at DESC`, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
