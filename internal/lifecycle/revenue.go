package lifecycle

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tableside/api/internal/enum"
)

// RevenueFilter selects a calendar period. Zero fields mean "all".
type RevenueFilter struct {
	Year  int
	Month int
	Day   int
}

// RevenueReport is the revenue fold for one filter selection.
type RevenueReport struct {
	Total         int64
	OrderCount    int
	AverageTicket decimal.Decimal
	ByMethod      map[string]int64
	AllTimeTotal  int64

	// Cascading filter options: each level only lists values present in
	// the orders matching the coarser levels already selected.
	Years  []int
	Months []int
	Days   []int
}

// Revenue folds paid orders into totals for the selected period.
// Calendar fields are read from CreatedAt in loc, both when listing filter
// options and when applying the filter.
func Revenue(orders []Order, f RevenueFilter, loc *time.Location) RevenueReport {
	if loc == nil {
		loc = time.UTC
	}

	report := RevenueReport{ByMethod: make(map[string]int64)}

	years := map[int]struct{}{}
	months := map[int]struct{}{}
	days := map[int]struct{}{}

	var count int64
	for _, o := range orders {
		if o.PaymentStatus != enum.PaymentStatusPaid {
			continue
		}
		report.AllTimeTotal += o.TotalPrice

		t := o.CreatedAt.In(loc)
		years[t.Year()] = struct{}{}
		if f.Year != 0 && t.Year() != f.Year {
			continue
		}
		months[int(t.Month())] = struct{}{}
		if f.Month != 0 && int(t.Month()) != f.Month {
			continue
		}
		days[t.Day()] = struct{}{}
		if f.Day != 0 && t.Day() != f.Day {
			continue
		}

		method := o.PaymentMethod
		if method == "" {
			method = enum.PaymentMethodUnknown
		}
		report.Total += o.TotalPrice
		report.ByMethod[method] += o.TotalPrice
		count++
	}

	report.OrderCount = int(count)
	if count > 0 {
		report.AverageTicket = decimal.NewFromInt(report.Total).
			Div(decimal.NewFromInt(count)).
			Round(2)
	}

	report.Years = sortedKeys(years, true)
	report.Months = sortedKeys(months, false)
	report.Days = sortedKeys(days, false)
	return report
}

func sortedKeys(set map[int]struct{}, desc bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	if desc {
		sort.Sort(sort.Reverse(sort.IntSlice(out)))
	} else {
		sort.Ints(out)
	}
	return out
}
