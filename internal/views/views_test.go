package views

import (
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"waterledger/internal/billing"
	"waterledger/internal/docstore"
	"waterledger/internal/docstore/memory"
	"waterledger/internal/records/domain"
	"waterledger/internal/stream"
)

func entry(date string, amount float64, status string) domain.SupplyEntry {
	return domain.SupplyEntry{Date: date, Amount: amount, Status: status}
}

func TestRevenueTotalsIncludeDrafts(t *testing.T) {
	entries := []domain.SupplyEntry{
		entry("2026-08-01", 500, billing.StatusCompleted),
		entry("2026-08-02", 120, billing.StatusDraft),
	}
	if got := TotalRevenue(entries); got != 620 {
		t.Fatalf("total revenue %v, want 620", got)
	}
	if got := BilledRevenue(entries); got != 500 {
		t.Fatalf("billed revenue %v, want 500", got)
	}
}

func TestRevenueTrendWeek(t *testing.T) {
	now := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	entries := []domain.SupplyEntry{
		entry("2026-08-20", 100, billing.StatusCompleted),
		entry("2026-08-20", 50, billing.StatusCompleted),
		entry("2026-08-14", 30, billing.StatusCompleted),
		entry("2026-08-13", 999, billing.StatusCompleted), // outside window
		entry("bad-date", 999, billing.StatusCompleted),
	}
	points := RevenueTrend(entries, PeriodWeek, now)
	if len(points) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(points))
	}
	if points[0].Label != "2026-08-14" || points[0].Amount != 30 {
		t.Fatalf("first bucket wrong: %+v", points[0])
	}
	if points[6].Label != "2026-08-20" || points[6].Amount != 150 {
		t.Fatalf("last bucket wrong: %+v", points[6])
	}
}

func TestRevenueTrendMonthUsesThreeDayBuckets(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	entries := []domain.SupplyEntry{
		entry("2026-08-01", 10, billing.StatusCompleted),
		entry("2026-08-02", 20, billing.StatusCompleted),
		entry("2026-08-03", 40, billing.StatusCompleted),
		entry("2026-08-30", 70, billing.StatusCompleted),
	}
	points := RevenueTrend(entries, PeriodMonth, now)
	if len(points) != 10 {
		t.Fatalf("expected 10 buckets, got %d", len(points))
	}
	if points[0].Label != "2026-08-01" || points[0].Amount != 70 {
		t.Fatalf("first bucket wrong: %+v", points[0])
	}
	if points[9].Amount != 70 {
		t.Fatalf("last bucket wrong: %+v", points[9])
	}
}

func TestCompareMonths(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	entries := []domain.SupplyEntry{
		entry("2026-08-01", 300, billing.StatusCompleted),
		entry("2026-07-20", 200, billing.StatusCompleted),
		entry("2026-06-01", 999, billing.StatusCompleted),
	}
	cmp := CompareMonths(entries, now)
	if cmp.Current != 300 || cmp.Previous != 200 {
		t.Fatalf("unexpected sums: %+v", cmp)
	}
	if cmp.ChangePercent != 50 {
		t.Fatalf("unexpected change: %+v", cmp)
	}

	empty := CompareMonths(nil, now)
	if empty.ChangePercent != 0 {
		t.Fatalf("empty previous month must not divide: %+v", empty)
	}
}

func TestDashboardRecomputesOnChange(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	logger := log.New(&strings.Builder{}, "", 0)

	seed := func(collection, id string, doc docstore.Document) {
		t.Helper()
		if err := store.Set(ctx, collection, id, doc); err != nil {
			t.Fatalf("seed %s/%s: %v", collection, id, err)
		}
	}
	seed(docstore.CollectionFarmers, "f1", docstore.Document{
		"familyId": "fam1", "name": "Ramesh", "isActive": true, "balance": 500.0,
	})
	seed(docstore.CollectionSupplies, "s1", docstore.Document{
		"familyId": "fam1", "farmerId": "f1", "billingMethod": "time",
		"status": "completed", "amount": 500.0, "date": "2026-08-01",
	})

	familyFilter := []docstore.Filter{docstore.Where("familyId", "fam1")}
	farmers := stream.NewQueryStream(store, docstore.CollectionFarmers,
		append([]docstore.Filter{docstore.Where("isActive", true)}, familyFilter...),
		domain.FarmerFromDocument, logger)
	supplies := stream.NewQueryStream(store, docstore.CollectionSupplies,
		familyFilter, domain.SupplyEntryFromDocument, logger)
	payments := stream.NewQueryStream(store, docstore.CollectionPayments,
		familyFilter, domain.PaymentFromDocument, logger)

	d := NewDashboard(farmers, supplies, payments)
	ch, detach := d.Attach()
	defer detach()

	deadline := time.After(2 * time.Second)
	var last Summary
	for last.FarmerCount != 1 || last.EntryCount != 1 || last.TotalRevenue != 500 {
		select {
		case last = <-ch:
		case <-deadline:
			t.Fatalf("dashboard never converged, last %+v", last)
		}
	}
	if last.Outstanding != 500 {
		t.Fatalf("outstanding %v, want 500", last.Outstanding)
	}

	seed(docstore.CollectionPayments, "p1", docstore.Document{
		"familyId": "fam1", "farmerId": "f1", "amount": 200.0,
		"paymentDate": "2026-08-15", "paymentMethod": "cash",
	})
	deadline = time.After(2 * time.Second)
	for last.PaymentCount != 1 || last.TotalPayments != 200 {
		select {
		case last = <-ch:
		case <-deadline:
			t.Fatalf("payment never reflected, last %+v", last)
		}
	}
}
