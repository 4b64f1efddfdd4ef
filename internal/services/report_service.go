package services

import (
	"context"
	"time"

	"kinara/internal/domain"
)

type Timeframe string

const (
	Week  Timeframe = "week"
	Month Timeframe = "month"
	Year  Timeframe = "year"
)

func ParseTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case Month:
		return Month
	case Year:
		return Year
	}
	return Week
}

func (t Timeframe) Days() int {
	switch t {
	case Month:
		return 30
	case Year:
		return 365
	}
	return 7
}

type Dashboard struct {
	Timeframe       Timeframe
	Revenue         int64
	RevenueChange   int
	Orders          int
	OrdersChange    int
	UnitsSold       int
	UnitsChange     int
	Customers       int
	CustomersChange int
	Recent          []domain.Order
}

type ReportService struct {
	Orders    OrderQuery
	Customers CustomerQuery
	now       func() time.Time
}

func NewReportService(orders OrderQuery, customers CustomerQuery) *ReportService {
	return &ReportService{Orders: orders, Customers: customers, now: time.Now}
}

// Dashboard compares the last tf days with the tf days before them.
func (s *ReportService) Dashboard(ctx context.Context, tf Timeframe) (Dashboard, error) {
	now := s.now().UTC()
	curStart := now.AddDate(0, 0, -tf.Days())
	prevStart := curStart.AddDate(0, 0, -tf.Days())

	cur, err := s.Orders.ListOrders(ctx, domain.TimeRange{From: curStart, To: now.Add(time.Nanosecond)})
	if err != nil {
		return Dashboard{}, err
	}
	prev, err := s.Orders.ListOrders(ctx, domain.TimeRange{From: prevStart, To: curStart})
	if err != nil {
		return Dashboard{}, err
	}
	customers, err := s.Customers.ListCustomers(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	prevCustomers := 0
	for _, c := range customers {
		if c.CreatedAt.Before(curStart) {
			prevCustomers++
		}
	}

	d := Dashboard{Timeframe: tf, Orders: len(cur), Customers: len(customers)}
	var prevRevenue int64
	prevUnits := 0
	for _, o := range cur {
		d.Revenue += o.TotalAmount
		d.UnitsSold += o.UnitCount()
	}
	for _, o := range prev {
		prevRevenue += o.TotalAmount
		prevUnits += o.UnitCount()
	}
	d.RevenueChange = PercentChange(d.Revenue, prevRevenue)
	d.OrdersChange = PercentChange(int64(d.Orders), int64(len(prev)))
	d.UnitsChange = PercentChange(int64(d.UnitsSold), int64(prevUnits))
	d.CustomersChange = PercentChange(int64(d.Customers), int64(prevCustomers))

	sortOrdersNewestFirst(cur)
	if len(cur) > 5 {
		cur = cur[:5]
	}
	d.Recent = cur
	return d, nil
}

// PercentChange is the rounded change from prev to cur, or 100 when prev is zero.
func PercentChange(cur, prev int64) int {
	if prev == 0 {
		return 100
	}
	return roundPercent(float64(cur-prev) / float64(prev) * 100)
}
