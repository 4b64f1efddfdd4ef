// Package session stores per-browser state between requests: the cart ledger and
// the catalog snapshot it is priced against.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"kinara/internal/cart"
	"kinara/internal/domain"
)

type Session struct {
	ID        string                  `json:"id"`
	Cart      *cart.Ledger            `json:"cart"`
	Catalog   *domain.CatalogSnapshot `json:"catalog,omitempty"`
	LastOrder *PlacedOrder            `json:"lastOrder,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// PlacedOrder is what the confirmation page shows for the session's latest checkout.
type PlacedOrder struct {
	OrderID        string    `json:"orderId"`
	Total          int64     `json:"total"`
	ItemCount      int       `json:"itemCount"`
	Missing        []string  `json:"missing,omitempty"`
	Payment        string    `json:"payment"`
	PaymentMessage string    `json:"paymentMessage,omitempty"`
	PlacedAt       time.Time `json:"placedAt"`
}

// Empty is a fresh session with an empty cart.
func Empty(id string) *Session {
	return &Session{ID: id, Cart: cart.New()}
}

// Store loads and saves sessions. Load returns an empty session for unknown ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Encode stamps UpdatedAt and marshals s for storage.
func Encode(s *Session) ([]byte, error) {
	s.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session failed: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode. A missing cart decodes as empty.
func Decode(id string, b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	s.ID = id
	if s.Cart == nil {
		s.Cart = cart.New()
	}
	return &s, nil
}

// MemoryStore keeps encoded sessions in process memory. Sessions are stored
// encoded so callers never share a Ledger.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	b, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return Empty(id), nil
	}
	return Decode(id, b)
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[s.ID] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}
