package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"kinara/internal/domain"
)

type CustomerRepo struct{ db *sqlx.DB }

func NewCustomerRepo(db *sqlx.DB) *CustomerRepo { return &CustomerRepo{db: db} }

type customerRow struct {
	ID            string         `db:"id"`
	FirstName     string         `db:"first_name"`
	LastName      string         `db:"last_name"`
	Phone         string         `db:"phone"`
	Email         string         `db:"email"`
	AddressesJSON string         `db:"addresses_json"`
	TotalOrders   int            `db:"total_orders"`
	TotalSpent    int64          `db:"total_spent"`
	LastOrderDate sql.NullString `db:"last_order_date"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

const customerCols = `id, first_name, last_name, phone, email, addresses_json,
    total_orders, total_spent, last_order_date, created_at, updated_at`

func (r customerRow) toDomain() (domain.Customer, error) {
	c := domain.Customer{
		ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Phone: r.Phone, Email: r.Email,
		TotalOrders: r.TotalOrders, TotalSpent: r.TotalSpent,
		CreatedAt: parseTS(r.CreatedAt), UpdatedAt: parseTS(r.UpdatedAt),
	}
	if r.LastOrderDate.Valid {
		t := parseTS(r.LastOrderDate.String)
		c.LastOrderDate = &t
	}
	if err := json.Unmarshal([]byte(r.AddressesJSON), &c.Addresses); err != nil {
		return c, fmt.Errorf("customer %s addresses: %w", r.ID, err)
	}
	return c, nil
}

func (r *CustomerRepo) CreateCustomer(ctx context.Context, c domain.Customer) (string, error) {
	c.ID = uuid.NewString()
	if err := insertCustomer(ctx, r.db, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func insertCustomer(ctx context.Context, ex sqlx.ExecerContext, c domain.Customer) error {
	addrs := c.Addresses
	if addrs == nil {
		addrs = []domain.CustomerAddress{}
	}
	addrJSON, err := json.Marshal(addrs)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	var last sql.NullString
	if c.LastOrderDate != nil {
		last = sql.NullString{String: formatTS(*c.LastOrderDate), Valid: true}
	}
	_, err = ex.ExecContext(ctx, `
	  INSERT INTO customers(`+customerCols+`)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.FirstName, c.LastName, c.Phone, c.Email, string(addrJSON),
		c.TotalOrders, c.TotalSpent, last, formatTS(c.CreatedAt), formatTS(c.UpdatedAt))
	return err
}

// DeleteCustomer removes a customer that has no orders.
func (r *CustomerRepo) DeleteCustomer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindCustomerByPhone returns the earliest customer registered with phone.
func (r *CustomerRepo) FindCustomerByPhone(ctx context.Context, phone string) (domain.Customer, error) {
	var row customerRow
	if err := r.db.GetContext(ctx, &row, `
	  SELECT `+customerCols+`
	  FROM customers
	  WHERE phone = ?
	  ORDER BY created_at
	  LIMIT 1`, phone); err != nil {
		return domain.Customer{}, notFound(err)
	}
	return row.toDomain()
}

func (r *CustomerRepo) RecordRepeatOrder(ctx context.Context, id string, amount int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE customers
	  SET total_orders = total_orders + 1,
	      total_spent = total_spent + ?,
	      last_order_date = ?,
	      updated_at = ?
	  WHERE id = ?`, amount, formatTS(at), formatTS(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CustomerRepo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var rows []customerRow
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT `+customerCols+`
	  FROM customers
	  ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
