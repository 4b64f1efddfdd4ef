package domain

import "time"

// CatalogEntry is a product as seen by a cart: id, display name, price and thumbnail.
type CatalogEntry struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	ImageRef  string `json:"imageRef,omitempty"`
}

// CatalogSnapshot is the product list a browsing session last fetched.
// Carts are priced against it, not against the live catalog.
type CatalogSnapshot struct {
	Entries   map[string]CatalogEntry `json:"entries"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

func NewCatalogSnapshot(products []Product, fetchedAt time.Time) *CatalogSnapshot {
	s := &CatalogSnapshot{Entries: make(map[string]CatalogEntry, len(products)), FetchedAt: fetchedAt}
	for _, p := range products {
		s.Entries[p.ID] = p.Entry()
	}
	return s
}

func (s *CatalogSnapshot) Lookup(productID string) (CatalogEntry, bool) {
	if s == nil {
		return CatalogEntry{}, false
	}
	e, ok := s.Entries[productID]
	return e, ok
}

// Merge adds or replaces entries from a fresher listing. Entries absent from the
// listing are kept so lines priced earlier in the session stay resolvable.
func (s *CatalogSnapshot) Merge(products []Product, fetchedAt time.Time) *CatalogSnapshot {
	if s == nil {
		return NewCatalogSnapshot(products, fetchedAt)
	}
	if s.Entries == nil {
		s.Entries = map[string]CatalogEntry{}
	}
	for _, p := range products {
		s.Entries[p.ID] = p.Entry()
	}
	s.FetchedAt = fetchedAt
	return s
}
