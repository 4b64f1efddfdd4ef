// Package cart holds the per-session cart ledger: product selections and the
// totals derived from them. A Ledger is owned by one browsing session and is
// not safe for concurrent use.
package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"kinara/internal/domain"
)

type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Catalog resolves a product id to its price and display data.
// *domain.CatalogSnapshot satisfies it.
type Catalog interface {
	Lookup(productID string) (domain.CatalogEntry, bool)
}

// ResolutionError lists cart products missing from the catalog a cart was priced against.
type ResolutionError struct {
	Missing []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("products not in catalog: %s", strings.Join(e.Missing, ", "))
}

// Ledger keeps at most one line per product, in the order products were first added.
type Ledger struct {
	lines []Line
}

// New rebuilds a ledger from stored lines, merging duplicates and dropping
// non-positive quantities.
func New(lines ...Line) *Ledger {
	l := &Ledger{}
	for _, ln := range lines {
		if ln.Quantity < 1 {
			continue
		}
		if i := l.index(ln.ProductID); i >= 0 {
			l.lines[i].Quantity += ln.Quantity
			continue
		}
		l.lines = append(l.lines, ln)
	}
	return l
}

func (l *Ledger) index(productID string) int {
	for i := range l.lines {
		if l.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments the product's quantity, inserting a line of quantity 1 on first add.
func (l *Ledger) Add(productID string) {
	if i := l.index(productID); i >= 0 {
		l.lines[i].Quantity++
		return
	}
	l.lines = append(l.lines, Line{ProductID: productID, Quantity: 1})
}

// Remove deletes the product's line. Removing an absent product is a no-op.
func (l *Ledger) Remove(productID string) {
	i := l.index(productID)
	if i < 0 {
		return
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
}

// SetQuantity replaces a line's quantity; qty < 1 removes the line.
func (l *Ledger) SetQuantity(productID string, qty int) {
	if qty < 1 {
		l.Remove(productID)
		return
	}
	if i := l.index(productID); i >= 0 {
		l.lines[i].Quantity = qty
		return
	}
	l.lines = append(l.lines, Line{ProductID: productID, Quantity: qty})
}

// QuantityOf is the quantity held for productID, 0 if there is no line.
func (l *Ledger) QuantityOf(productID string) int {
	if i := l.index(productID); i >= 0 {
		return l.lines[i].Quantity
	}
	return 0
}

// LineCount is the number of distinct products in the cart.
func (l *Ledger) LineCount() int { return len(l.lines) }

// ItemCount is the sum of all line quantities.
func (l *Ledger) ItemCount() int {
	n := 0
	for _, ln := range l.lines {
		n += ln.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (l *Ledger) IsEmpty() bool { return len(l.lines) == 0 }

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []Line {
	out := make([]Line, len(l.lines))
	copy(out, l.lines)
	return out
}

// Total sums unit price times quantity over lines found in c. Lines whose
// product is missing from c contribute zero.
func (l *Ledger) Total(c Catalog) int64 {
	var total int64
	for _, ln := range l.lines {
		if e, ok := c.Lookup(ln.ProductID); ok {
			total += e.UnitPrice * int64(ln.Quantity)
		}
	}
	return total
}

// Resolve joins every line against c. Lines whose product is missing are left
// out of the result and their ids returned in missing.
func (l *Ledger) Resolve(c Catalog) (lines []domain.ResolvedLine, missing []string) {
	for _, ln := range l.lines {
		e, ok := c.Lookup(ln.ProductID)
		if !ok {
			missing = append(missing, ln.ProductID)
			continue
		}
		lines = append(lines, domain.ResolvedLine{
			ProductID:    ln.ProductID,
			Quantity:     ln.Quantity,
			UnitPrice:    e.UnitPrice,
			ProductName:  e.Name,
			ProductImage: e.ImageRef,
		})
	}
	return lines, missing
}

// ResolveStrict is Resolve that fails with *ResolutionError when any product is missing.
func (l *Ledger) ResolveStrict(c Catalog) ([]domain.ResolvedLine, error) {
	lines, missing := l.Resolve(c)
	if len(missing) > 0 {
		return nil, &ResolutionError{Missing: missing}
	}
	return lines, nil
}

// Clear empties the ledger. Called once a checkout completes.
func (l *Ledger) Clear() { l.lines = nil }

func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l.lines == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.lines)
}

func (l *Ledger) UnmarshalJSON(b []byte) error {
	var lines []Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	*l = *New(lines...)
	return nil
}
