package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kinara/internal/domain"
)

// CatalogRepositoryFS serves products and categories.
type CatalogRepositoryFS struct {
	Client *firestore.Client
}

func NewCatalogRepositoryFS(client *firestore.Client) *CatalogRepositoryFS {
	return &CatalogRepositoryFS{Client: client}
}

func (r *CatalogRepositoryFS) products() *firestore.CollectionRef {
	return r.Client.Collection("products")
}

func (r *CatalogRepositoryFS) categories() *firestore.CollectionRef {
	return r.Client.Collection("categories")
}

// ListProducts reads the collection newest first and filters in memory, the
// same way the web shop does.
func (r *CatalogRepositoryFS) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	if r.Client == nil {
		return nil, errNilClient
	}
	it := r.products().OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer it.Stop()

	var out []domain.Product
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		p := productFromData(doc.Ref.ID, doc.Data())
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *CatalogRepositoryFS) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if r.Client == nil {
		return nil, errNilClient
	}
	it := r.categories().OrderBy("name", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var out []domain.Category
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, categoryFromData(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

func (r *CatalogRepositoryFS) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if r.Client == nil {
		return domain.Product{}, errNilClient
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.ErrNotFound
	}
	snap, err := r.products().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, err
	}
	return productFromData(snap.Ref.ID, snap.Data()), nil
}

func (r *CatalogRepositoryFS) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	if r.Client == nil {
		return "", errNilClient
	}
	stampCreated(&p.CreatedAt, &p.UpdatedAt)
	ref := r.products().NewDoc()
	if _, err := ref.Create(ctx, productData(p)); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r *CatalogRepositoryFS) CreateCategory(ctx context.Context, c domain.Category) (string, error) {
	if r.Client == nil {
		return "", errNilClient
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	ref := r.categories().NewDoc()
	if _, err := ref.Create(ctx, map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"createdAt":   c.CreatedAt,
	}); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func stampCreated(created, updated *time.Time) {
	if created.IsZero() {
		*created = time.Now().UTC()
	}
	if updated.IsZero() {
		*updated = *created
	}
}
