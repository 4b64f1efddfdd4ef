package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when a record id does not exist.
var ErrNotFound = errors.New("not found")

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ProductImage struct {
	Data string `json:"data"` // data URL or hosted image URL
	Type string `json:"type"` // mime type
}

// Product prices are whole KES.
type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          int64             `json:"price"`
	CategoryID     string            `json:"categoryId"`
	Images         []ProductImage    `json:"images"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	Stock          int               `json:"stock"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ImageRef is the thumbnail src, the first image.
func (p Product) ImageRef() string { return p.ImageSrc(0) }

// ImageSrc is the src for image i. Uploaded images are stored inline as data
// URLs; those are referenced through the product image route so carts, orders
// and templates only ever carry a short link.
func (p Product) ImageSrc(i int) string {
	if i < 0 || i >= len(p.Images) {
		return ""
	}
	if strings.HasPrefix(p.Images[i].Data, "data:") {
		return "/product/" + p.ID + "/image?i=" + strconv.Itoa(i)
	}
	return p.Images[i].Data
}

func (p Product) InStock() bool { return p.Stock > 0 }

// Entry is the part of a product a cart needs to price a line.
func (p Product) Entry() CatalogEntry {
	return CatalogEntry{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, ImageRef: p.ImageRef()}
}

// ProductFilter narrows a catalog listing. CategoryID "" or "all" means every category;
// Query matches name or description case-insensitively.
type ProductFilter struct {
	CategoryID string
	Query      string
}

func (f ProductFilter) AllCategories() bool {
	return f.CategoryID == "" || f.CategoryID == "all"
}

func (f ProductFilter) Matches(p Product) bool {
	if !f.AllCategories() && p.CategoryID != f.CategoryID {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}

// TimeRange bounds a listing by creation time. Zero ends are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
