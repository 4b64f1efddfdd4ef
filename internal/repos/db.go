package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"kinara/internal/domain"
	applog "kinara/internal/log"
)

// tsLayout is fixed width so timestamps compare correctly as text.
const tsLayout = "2006-01-02 15:04:05.000000"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(tsLayout, s, time.UTC)
	if err != nil {
		// CURRENT_TIMESTAMP defaults carry no fraction
		t, _ = time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	}
	return t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	// Ensure users exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Categories
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_nocase ON categories(LOWER(name));

-- Products (price in whole KES)
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  images_json TEXT NOT NULL DEFAULT '[]',
  features_json TEXT NOT NULL DEFAULT '[]',
  specs_json TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category   ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at);

-- Customers
CREATE TABLE IF NOT EXISTS customers(
  id TEXT PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL,
  email TEXT NOT NULL DEFAULT '',
  addresses_json TEXT NOT NULL DEFAULT '[]',
  total_orders INTEGER NOT NULL DEFAULT 0,
  total_spent INTEGER NOT NULL DEFAULT 0,
  last_order_date TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);

-- Orders (line items are kept with the order at the price they were sold for)
CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE RESTRICT,
  items_json TEXT NOT NULL,
  total_amount INTEGER NOT NULL CHECK (total_amount >= 0),
  status TEXT NOT NULL CHECK (status IN ('pending','processing','shipped','delivered','cancelled')),
  order_type TEXT NOT NULL,
  shipping_json TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_reference TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_customer   ON orders(customer_id);

-- Carts: one encoded browsing session per sid cookie
CREATE TABLE IF NOT EXISTS carts(
  session_id TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

type seedProduct struct {
	id, category, name, description string
	price                           int64
	stock                           int
	image                           string
	features                        []string
	specs                           map[string]string
	ageDays                         int
}

var seedCategories = []domain.Category{
	{ID: "solar-panels", Name: "Solar Panels", Description: "Monocrystalline and polycrystalline modules"},
	{ID: "inverters", Name: "Inverters", Description: "Hybrid and off-grid inverters"},
	{ID: "batteries", Name: "Batteries", Description: "Lithium and gel storage"},
	{ID: "lighting", Name: "Solar Lighting", Description: "Street, flood and home lighting kits"},
}

var seedProducts = []seedProduct{
	{"panel-mono-450", "solar-panels", "Mono Panel 450W", "Half-cut monocrystalline module for rooftop arrays.",
		18500, 40, "/static/img/panel-mono-450.jpg",
		[]string{"25 year output warranty", "IP68 junction box"},
		map[string]string{"Power": "450W", "Efficiency": "20.9%"}, 60},
	{"panel-poly-200", "solar-panels", "Poly Panel 200W", "Entry level module for small home systems.",
		8200, 6, "/static/img/panel-poly-200.jpg",
		[]string{"Anodised frame"},
		map[string]string{"Power": "200W"}, 10},
	{"inv-hybrid-5k", "inverters", "Hybrid Inverter 5kVA", "Pure sine wave hybrid inverter with MPPT charger.",
		96000, 12, "/static/img/inv-hybrid-5k.jpg",
		[]string{"Built-in 100A MPPT", "Wi-Fi monitoring"},
		map[string]string{"Rated power": "5kVA", "Battery voltage": "48V"}, 45},
	{"bat-lfp-5kwh", "batteries", "Lithium Battery 5kWh", "LiFePO4 wall mount battery with BMS.",
		185000, 4, "/static/img/bat-lfp-5kwh.jpg",
		[]string{"6000 cycles", "10 year warranty"},
		map[string]string{"Capacity": "5.12kWh", "Voltage": "51.2V"}, 5},
	{"light-street-100", "lighting", "Solar Street Light 100W", "All-in-one street light with motion sensor.",
		12500, 0, "/static/img/light-street-100.jpg",
		[]string{"Dusk to dawn", "Motion sensor"},
		map[string]string{"Lumens": "10000lm"}, 90},
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Info(nil, "seed_catalog", map[string]any{"categories": len(seedCategories), "products": len(seedProducts)})

	now := time.Now().UTC()
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ctx := context.Background()
	for _, c := range seedCategories {
		c.CreatedAt = now
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, s := range seedProducts {
		created := now.AddDate(0, 0, -s.ageDays)
		p := domain.Product{
			ID: s.id, CategoryID: s.category, Name: s.name, Description: s.description,
			Price: s.price, Stock: s.stock,
			Images:   []domain.ProductImage{{Data: s.image, Type: "image/jpeg"}},
			Features: s.features, Specifications: s.specs,
			CreatedAt: created, UpdatedAt: created,
		}
		if err := insertProduct(ctx, tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// seedUsers ensures the back-office accounts exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), 12)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-staff", "staff@kinara.test", "Staff", domain.RoleUser, "Passw0rd!"),
		mk("u-admin", "admin@kinara.test", "Admin", domain.RoleAdmin, "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
