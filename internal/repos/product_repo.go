package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"kinara/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

type productRow struct {
	ID           string `db:"id"`
	CategoryID   string `db:"category_id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	Price        int64  `db:"price"`
	Stock        int    `db:"stock"`
	ImagesJSON   string `db:"images_json"`
	FeaturesJSON string `db:"features_json"`
	SpecsJSON    string `db:"specs_json"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

const productCols = `id, category_id, name, description, price, stock,
    images_json, features_json, specs_json, created_at, updated_at`

func (r productRow) toDomain() (domain.Product, error) {
	p := domain.Product{
		ID: r.ID, CategoryID: r.CategoryID, Name: r.Name, Description: r.Description,
		Price: r.Price, Stock: r.Stock,
		CreatedAt: parseTS(r.CreatedAt), UpdatedAt: parseTS(r.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(r.ImagesJSON), &p.Images); err != nil {
		return p, fmt.Errorf("product %s images: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.FeaturesJSON), &p.Features); err != nil {
		return p, fmt.Errorf("product %s features: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.SpecsJSON), &p.Specifications); err != nil {
		return p, fmt.Errorf("product %s specifications: %w", r.ID, err)
	}
	return p, nil
}

// ListProducts returns matching products newest first.
func (r *ProductRepo) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	where := `1 = 1`
	args := []any{}
	if !f.AllCategories() {
		where += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		where += ` AND (INSTR(LOWER(name), ?) > 0 OR INSTR(LOWER(description), ?) > 0)`
		args = append(args, q, q)
	}

	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT `+productCols+`
	  FROM products
	  WHERE `+where+`
	  ORDER BY created_at DESC`, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ProductRepo) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+productCols+` FROM products WHERE id = ?`, id); err != nil {
		return domain.Product{}, notFound(err)
	}
	return row.toDomain()
}

// CreateProduct stores p under a new id unless p.ID is already set.
func (r *ProductRepo) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if err := insertProduct(ctx, r.db, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func insertProduct(ctx context.Context, ex sqlx.ExecerContext, p domain.Product) error {
	images, err := json.Marshal(nonNilImages(p.Images))
	if err != nil {
		return err
	}
	features, err := json.Marshal(nonNilStrings(p.Features))
	if err != nil {
		return err
	}
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	specsJSON, err := json.Marshal(specs)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
	  INSERT INTO products(`+productCols+`)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.Stock,
		string(images), string(features), string(specsJSON),
		formatTS(p.CreatedAt), formatTS(p.UpdatedAt))
	return err
}

func nonNilImages(in []domain.ProductImage) []domain.ProductImage {
	if in == nil {
		return []domain.ProductImage{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
