package services

import (
	"context"
	"strings"
	"time"

	"kinara/internal/domain"
)

const (
	lowStockThreshold = 10
	maxProductImages  = 4
)

type Availability struct {
	Status string // IN_STOCK, LOW_STOCK or OUT_OF_STOCK
	Qty    int
}

// CheckAvailability labels a product's stock level.
func CheckAvailability(p domain.Product) Availability {
	status := "OUT_OF_STOCK"
	switch {
	case p.Stock >= lowStockThreshold:
		status = "IN_STOCK"
	case p.Stock > 0:
		status = "LOW_STOCK"
	}
	return Availability{Status: status, Qty: p.Stock}
}

type ProductStats struct {
	Total        int
	AveragePrice int64
	LowStock     int
	OutOfStock   int
}

func ComputeProductStats(products []domain.Product) ProductStats {
	st := ProductStats{Total: len(products)}
	var sum int64
	for _, p := range products {
		sum += p.Price
		if p.Stock < lowStockThreshold {
			st.LowStock++
		}
		if p.Stock == 0 {
			st.OutOfStock++
		}
	}
	if st.Total > 0 {
		st.AveragePrice = sum / int64(st.Total)
	}
	return st
}

// NewProduct is the admin create-product form after parsing.
type NewProduct struct {
	Name                   string
	Description            string
	Price                  int64
	Stock                  int
	CategoryID             string
	NewCategory            string
	NewCategoryDescription string
	Features               []string
	Specifications         map[string]string
	Images                 []domain.ProductImage
}

type ProductService struct {
	Writer CatalogWriter
	now    func() time.Time
}

func NewProductService(w CatalogWriter) *ProductService {
	return &ProductService{Writer: w, now: time.Now}
}

// Create stores a product, creating its category first when NewCategory is set.
func (s *ProductService) Create(ctx context.Context, in NewProduct) (domain.Product, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return domain.Product{}, &ValidationError{Field: "name", Reason: "required"}
	case in.Price <= 0:
		return domain.Product{}, &ValidationError{Field: "price", Reason: "must be positive"}
	case in.Stock < 0:
		return domain.Product{}, &ValidationError{Field: "stock", Reason: "must not be negative"}
	case len(in.Images) == 0:
		return domain.Product{}, &ValidationError{Field: "images", Reason: "at least one product image is required"}
	case len(in.Images) > maxProductImages:
		return domain.Product{}, &ValidationError{Field: "images", Reason: "at most 4 images"}
	}
	newCat := strings.TrimSpace(in.NewCategory)
	if newCat == "" && strings.TrimSpace(in.CategoryID) == "" {
		return domain.Product{}, &ValidationError{Field: "category", Reason: "required"}
	}

	now := s.now().UTC()
	categoryID := strings.TrimSpace(in.CategoryID)
	if newCat != "" {
		id, err := s.Writer.CreateCategory(ctx, domain.Category{
			Name:        newCat,
			Description: strings.TrimSpace(in.NewCategoryDescription),
			CreatedAt:   now,
		})
		if err != nil {
			return domain.Product{}, err
		}
		categoryID = id
	}

	p := domain.Product{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price,
		CategoryID:     categoryID,
		Images:         in.Images,
		Features:       compactStrings(in.Features),
		Specifications: compactSpecs(in.Specifications),
		Stock:          in.Stock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id, err := s.Writer.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	return p, nil
}

func compactStrings(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func compactSpecs(in map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
