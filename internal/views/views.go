// Package views derives the dashboard aggregates from record snapshots.
// Everything here is a pure function over full slices; aggregates are
// recomputed from scratch on every snapshot, never maintained
// incrementally.
package views

import (
	"time"

	"waterledger/internal/billing"
	"waterledger/internal/records/domain"
)

const dayFormat = "2006-01-02"

// TotalRevenue sums the amount of every supply entry, drafts included.
// Draft amounts are whatever their partial inputs computed; the dashboard
// shows gross recorded revenue, not just billed revenue.
func TotalRevenue(entries []domain.SupplyEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// BilledRevenue sums completed entries only.
func BilledRevenue(entries []domain.SupplyEntry) float64 {
	var total float64
	for _, e := range entries {
		if e.Status == billing.StatusCompleted {
			total += e.Amount
		}
	}
	return total
}

// TotalPayments sums every payment.
func TotalPayments(payments []domain.Payment) float64 {
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}

// TotalOutstanding sums the stored balances of the given farmers.
func TotalOutstanding(farmers []domain.Farmer) float64 {
	var total float64
	for _, f := range farmers {
		total += f.Balance
	}
	return total
}

// TrendPoint is one revenue bucket. Label is the bucket's first day.
type TrendPoint struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Trend periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// RevenueTrend buckets entry amounts by date. The week view is the last 7
// days with one bucket per day; the month view is the last 30 days in
// 3-day buckets. Dates are compared as YYYY-MM-DD strings.
func RevenueTrend(entries []domain.SupplyEntry, period string, now time.Time) []TrendPoint {
	switch period {
	case PeriodMonth:
		return bucketed(entries, now.AddDate(0, 0, -29), 10, 3)
	default:
		return bucketed(entries, now.AddDate(0, 0, -6), 7, 1)
	}
}

func bucketed(entries []domain.SupplyEntry, start time.Time, buckets, daysPerBucket int) []TrendPoint {
	points := make([]TrendPoint, buckets)
	for i := range points {
		points[i].Label = start.AddDate(0, 0, i*daysPerBucket).Format(dayFormat)
	}
	for _, e := range entries {
		day, err := time.Parse(dayFormat, e.Date)
		if err != nil {
			continue
		}
		offset := int(day.Sub(truncateDay(start)).Hours() / 24)
		if offset < 0 {
			continue
		}
		idx := offset / daysPerBucket
		if idx >= buckets {
			continue
		}
		points[idx].Amount += e.Amount
	}
	return points
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthComparison compares this calendar month's revenue with the
// previous one.
type MonthComparison struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"changePercent"`
}

// CompareMonths sums entry amounts by calendar-month prefix. The change
// percentage is zero when the previous month had no revenue.
func CompareMonths(entries []domain.SupplyEntry, now time.Time) MonthComparison {
	currentPrefix := now.Format("2006-01")
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	previousPrefix := firstOfMonth.AddDate(0, -1, 0).Format("2006-01")

	var cmp MonthComparison
	for _, e := range entries {
		if len(e.Date) < len(currentPrefix) {
			continue
		}
		switch e.Date[:len(currentPrefix)] {
		case currentPrefix:
			cmp.Current += e.Amount
		case previousPrefix:
			cmp.Previous += e.Amount
		}
	}
	if cmp.Previous != 0 {
		cmp.ChangePercent = (cmp.Current - cmp.Previous) / cmp.Previous * 100
	}
	return cmp
}
