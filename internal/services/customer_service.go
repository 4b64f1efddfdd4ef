package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"kinara/internal/domain"
)

const activeWindow = 90 * 24 * time.Hour

type CustomerListOptions struct {
	Filter string // "active", "inactive" or "" for all
	Sort   string // "recent" (default), "orders" or "spent"
	Search string
}

type CustomerRow struct {
	domain.Customer
	Status       domain.CustomerStatus
	AverageOrder int64
}

type CustomerSummary struct {
	Total        int
	Active       int
	AverageOrder int64
}

type CustomerService struct {
	Customers CustomerQuery
	now       func() time.Time
}

func NewCustomerService(q CustomerQuery) *CustomerService {
	return &CustomerService{Customers: q, now: time.Now}
}

func (s *CustomerService) List(ctx context.Context, opt CustomerListOptions) ([]CustomerRow, CustomerSummary, error) {
	all, err := s.Customers.ListCustomers(ctx)
	if err != nil {
		return nil, CustomerSummary{}, err
	}
	now := s.now()
	cutoff := now.Add(-activeWindow)
	needle := strings.ToLower(strings.TrimSpace(opt.Search))

	var picked []domain.Customer
	for _, c := range all {
		switch opt.Filter {
		case "active":
			if c.LastOrderDate == nil || c.LastOrderDate.Before(cutoff) {
				continue
			}
		case "inactive":
			if c.LastOrderDate == nil || !c.LastOrderDate.Before(cutoff) {
				continue
			}
		}
		if needle != "" {
			hay := strings.ToLower(c.FirstName + " " + c.LastName + " " + c.Email + " " + c.Phone)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		picked = append(picked, c)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		a, b := picked[i], picked[j]
		switch opt.Sort {
		case "orders":
			return a.TotalOrders > b.TotalOrders
		case "spent":
			return a.TotalSpent > b.TotalSpent
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	rows := make([]CustomerRow, 0, len(picked))
	sum := CustomerSummary{Total: len(picked)}
	var spent, orders int64
	for _, c := range picked {
		st := c.Status(now)
		if st == domain.CustomerActive {
			sum.Active++
		}
		spent += c.TotalSpent
		orders += int64(c.TotalOrders)
		rows = append(rows, CustomerRow{Customer: c, Status: st, AverageOrder: c.AverageOrder()})
	}
	if orders > 0 {
		sum.AverageOrder = spent / orders
	}
	return rows, sum, nil
}
