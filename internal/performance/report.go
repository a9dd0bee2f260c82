// Package performance aggregates join-person sales into per-manager and
// per-golf-club reports.
package performance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/golf-intranet/internal/repository"
)

// OtherClub labels sales whose course time has no golf club.
const OtherClub = "기타"

const dateLayout = "2006-01-02"

// SalesSource lists the sales recorded in [start, end).
type SalesSource interface {
	ListSales(ctx context.Context, start, end time.Time, managerID *uint64) ([]repository.SaleRow, error)
}

// Range is an inclusive range of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// DefaultRange covers one month back from today through today.
func DefaultRange(now time.Time) Range {
	today := day(now)
	return Range{Start: today.AddDate(0, -1, 0), End: today}
}

// ParseRange reads YYYY-MM-DD bounds; a blank bound takes its value from
// DefaultRange.
func ParseRange(start, end string, now time.Time) (Range, error) {
	r := DefaultRange(now)
	if start != "" {
		t, err := time.ParseInLocation(dateLayout, start, now.Location())
		if err != nil {
			return Range{}, fmt.Errorf("invalid start_date %q", start)
		}
		r.Start = t
	}
	if end != "" {
		t, err := time.ParseInLocation(dateLayout, end, now.Location())
		if err != nil {
			return Range{}, fmt.Errorf("invalid end_date %q", end)
		}
		r.End = t
	}
	if r.End.Before(r.Start) {
		return Range{}, fmt.Errorf("end_date before start_date")
	}
	return r, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type ManagerPerformance struct {
	ManagerID       *uint64         `json:"manager_id"`
	ManagerName     string          `json:"manager_name"`
	TotalSales      int64           `json:"total_sales"`
	TotalCommission int64           `json:"total_commission"`
	TotalCount      int             `json:"total_count"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
}

type GolfClubPerformance struct {
	GolfClubName string `json:"golf_club_name"`
	TotalSales   int64  `json:"total_sales"`
	TotalCount   int    `json:"total_count"`
}

type Totals struct {
	TotalSales      int64           `json:"total_sales"`
	TotalCommission int64           `json:"total_commission"`
	TotalCount      int             `json:"total_count"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
}

type Report struct {
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Managers  []ManagerPerformance  `json:"managers"`
	GolfClubs []GolfClubPerformance `json:"golf_clubs"`
	Totals    Totals                `json:"totals"`
}

// Service builds reports from a SalesSource.
type Service struct {
	src SalesSource
}

func NewService(src SalesSource) *Service { return &Service{src: src} }

// Build aggregates the sales in r. A non-nil managerID restricts the
// report to that manager.
func (s *Service) Build(ctx context.Context, r Range, managerID *uint64) (*Report, error) {
	rows, err := s.src.ListSales(ctx, r.Start, r.End.AddDate(0, 0, 1), managerID)
	if err != nil {
		return nil, err
	}
	rep := Aggregate(rows)
	rep.StartDate = r.Start.Format(dateLayout)
	rep.EndDate = r.End.Format(dateLayout)
	return rep, nil
}

// Aggregate sums rows per manager and per golf club. Both lists are sorted
// by total sales, largest first, with ties broken by name.
func Aggregate(rows []repository.SaleRow) *Report {
	type managerKey struct {
		id   uint64
		none bool
	}
	managers := map[managerKey]*ManagerPerformance{}
	clubs := map[string]*GolfClubPerformance{}
	rep := &Report{Managers: []ManagerPerformance{}, GolfClubs: []GolfClubPerformance{}}

	for _, row := range rows {
		k := managerKey{none: row.ManagerID == nil}
		if row.ManagerID != nil {
			k.id = *row.ManagerID
		}
		m, ok := managers[k]
		if !ok {
			m = &ManagerPerformance{ManagerID: row.ManagerID, ManagerName: "-"}
			if row.ManagerName != nil {
				m.ManagerName = *row.ManagerName
			}
			managers[k] = m
		}
		m.TotalSales += row.GreenFee
		m.TotalCommission += row.ChargeFee
		m.TotalCount++

		name := OtherClub
		if row.GolfClubName != nil && *row.GolfClubName != "" {
			name = *row.GolfClubName
		}
		g, ok := clubs[name]
		if !ok {
			g = &GolfClubPerformance{GolfClubName: name}
			clubs[name] = g
		}
		g.TotalSales += row.GreenFee
		g.TotalCount++

		rep.Totals.TotalSales += row.GreenFee
		rep.Totals.TotalCommission += row.ChargeFee
		rep.Totals.TotalCount++
	}

	for _, m := range managers {
		m.CommissionRate = rate(m.TotalCommission, m.TotalSales)
		rep.Managers = append(rep.Managers, *m)
	}
	for _, g := range clubs {
		rep.GolfClubs = append(rep.GolfClubs, *g)
	}
	rep.Totals.CommissionRate = rate(rep.Totals.TotalCommission, rep.Totals.TotalSales)

	sort.Slice(rep.Managers, func(i, j int) bool {
		a, b := rep.Managers[i], rep.Managers[j]
		if a.TotalSales != b.TotalSales {
			return a.TotalSales > b.TotalSales
		}
		return a.ManagerName < b.ManagerName
	})
	sort.Slice(rep.GolfClubs, func(i, j int) bool {
		a, b := rep.GolfClubs[i], rep.GolfClubs[j]
		if a.TotalSales != b.TotalSales {
			return a.TotalSales > b.TotalSales
		}
		return a.GolfClubName < b.GolfClubName
	})
	return rep
}

// rate is commission/sales rounded to four places, zero for no sales.
func rate(commission, sales int64) decimal.Decimal {
	if sales == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(commission).DivRound(decimal.NewFromInt(sales), 4)
}
