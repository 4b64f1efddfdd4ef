package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"kinara/internal/domain"
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

type categoryRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	CreatedAt   string `db:"created_at"`
}

func (r *CategoryRepo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	if err := r.db.SelectContext(ctx, &rows, `
	  SELECT id, name, description, created_at
	  FROM categories
	  ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Category{
			ID: row.ID, Name: row.Name, Description: row.Description, CreatedAt: parseTS(row.CreatedAt),
		})
	}
	return out, nil
}

func (r *CategoryRepo) CreateCategory(ctx context.Context, c domain.Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if err := insertCategory(ctx, r.db, c); err != nil {
		return "", err
	}
	return c.ID, nil
}

func insertCategory(ctx context.Context, ex sqlx.ExecerContext, c domain.Category) error {
	_, err := ex.ExecContext(ctx, `
	  INSERT INTO categories(id, name, description, created_at)
	  VALUES(?,?,?,?)`, c.ID, c.Name, c.Description, formatTS(c.CreatedAt))
	return err
}
