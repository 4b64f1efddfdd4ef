package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"kinara/internal/domain"
)

const newArrivalWindow = 30 * 24 * time.Hour

type CatalogService struct {
	Reader   CatalogReader
	Products ProductReader
	group    singleflight.Group
	now      func() time.Time
}

func NewCatalogService(reader CatalogReader, products ProductReader) *CatalogService {
	return &CatalogService{Reader: reader, Products: products, now: time.Now}
}

// ListProducts queries the catalog every call. Concurrent identical queries
// share one round trip.
func (s *CatalogService) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	if f.AllCategories() {
		f.CategoryID = ""
	}
	f.Query = strings.TrimSpace(f.Query)
	key := "products|" + f.CategoryID + "|" + strings.ToLower(f.Query)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.Reader.ListProducts(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Product(nil), v.([]domain.Product)...), nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	v, err, _ := s.group.Do("categories", func() (any, error) {
		return s.Reader.ListCategories(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Category(nil), v.([]domain.Category)...), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.Products.GetProduct(ctx, id)
}

type ShopSummary struct {
	Total       int
	Available   int
	NewArrivals int
	Categories  int
}

func (s *CatalogService) Summarize(products []domain.Product, categories []domain.Category) ShopSummary {
	now := s.now()
	sum := ShopSummary{Total: len(products), Categories: len(categories)}
	for _, p := range products {
		if p.InStock() {
			sum.Available++
		}
		if now.Sub(p.CreatedAt) <= newArrivalWindow {
			sum.NewArrivals++
		}
	}
	return sum
}
