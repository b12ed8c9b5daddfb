package application

import (
	"context"
	"errors"
	"log"
	"math"
	"math/rand"
	"strings"
	"testing"

	"waterledger/internal/billing"
	"waterledger/internal/docstore"
	"waterledger/internal/docstore/memory"
	"waterledger/internal/ledger"
	"waterledger/internal/records/docrepo"
	"waterledger/internal/records/domain"
)

type fixture struct {
	store    *memory.Store
	farmers  *FarmerService
	supplies *SupplyService
	payments *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := log.New(&strings.Builder{}, "", 0)

	farmerRepo, err := docrepo.NewFarmerRepository(store)
	if err != nil {
		t.Fatalf("farmer repo: %v", err)
	}
	supplyRepo, err := docrepo.NewSupplyRepository(store)
	if err != nil {
		t.Fatalf("supply repo: %v", err)
	}
	paymentRepo, err := docrepo.NewPaymentRepository(store)
	if err != nil {
		t.Fatalf("payment repo: %v", err)
	}
	applier, err := ledger.NewApplier(store, logger)
	if err != nil {
		t.Fatalf("applier: %v", err)
	}
	farmers, err := NewFarmerService(farmerRepo, store, logger)
	if err != nil {
		t.Fatalf("farmer service: %v", err)
	}
	supplies, err := NewSupplyService(supplyRepo, farmerRepo, applier, store, logger)
	if err != nil {
		t.Fatalf("supply service: %v", err)
	}
	payments, err := NewPaymentService(paymentRepo, farmerRepo, applier, store, logger)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	return &fixture{store: store, farmers: farmers, supplies: supplies, payments: payments}
}

func (f *fixture) addFarmer(t *testing.T, name string) string {
	t.Helper()
	farmer := &domain.Farmer{FamilyID: "fam1", Name: name, DefaultRate: 100}
	if err := f.farmers.SaveFarmer(context.Background(), farmer); err != nil {
		t.Fatalf("save farmer: %v", err)
	}
	return farmer.ID
}

func (f *fixture) balance(t *testing.T, farmerID string) float64 {
	t.Helper()
	farmer, err := f.farmers.GetFarmer(context.Background(), farmerID)
	if err != nil || farmer == nil {
		t.Fatalf("get farmer %s: %v", farmerID, err)
	}
	return farmer.Balance
}

func timeEntry(farmerID string, rate float64, status string) *domain.SupplyEntry {
	return &domain.SupplyEntry{
		FamilyID:      "fam1",
		FarmerID:      farmerID,
		Date:          "2026-08-10",
		BillingMethod: billing.MethodTime,
		StartTime:     "06:00",
		StopTime:      "11:00",
		Rate:          rate,
		Status:        status,
	}
}

func cashPayment(farmerID string, amount float64) *domain.Payment {
	return &domain.Payment{
		FamilyID:      "fam1",
		FarmerID:      farmerID,
		Amount:        amount,
		PaymentDate:   "2026-08-15",
		PaymentMethod: "cash",
	}
}

func TestCompletedSupplyPostsAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 100, billing.StatusCompleted)
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("save entry: %v", err)
	}
	if entry.TotalTimeUsed != 5 || entry.Amount != 500 {
		t.Fatalf("unexpected computation: %+v", entry)
	}
	if got := f.balance(t, farmerID); got != 500 {
		t.Fatalf("expected balance 500, got %v", got)
	}
	if entry.FarmerName != "Ramesh" {
		t.Fatalf("farmer name not denormalised: %+v", entry)
	}
}

func TestDraftContributesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 100, billing.StatusDraft)
	entry.StopTime = ""
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if got := f.balance(t, farmerID); got != 0 {
		t.Fatalf("draft moved balance to %v", got)
	}
}

func TestDraftPromotionPostsFullNewAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 100, billing.StatusDraft)
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	entry.Status = billing.StatusCompleted
	entry.Rate = 120
	if err := f.supplies.UpdateSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if got := f.balance(t, farmerID); got != 600 {
		t.Fatalf("expected balance 600 after promotion, got %v", got)
	}
}

func TestDemotionWithdrawsOldAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 100, billing.StatusCompleted)
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	entry.Status = billing.StatusDraft
	if err := f.supplies.UpdateSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if got := f.balance(t, farmerID); got != 0 {
		t.Fatalf("expected balance 0 after demotion, got %v", got)
	}
}

func TestReassignmentMovesAmountsBetweenFarmers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addFarmer(t, "A")
	b := f.addFarmer(t, "B")

	entry := timeEntry(a, 100, billing.StatusCompleted)
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("save: %v", err)
	}

	entry.FarmerID = b
	entry.FarmerName = "B"
	entry.Rate = 200
	if err := f.supplies.UpdateSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got := f.balance(t, a); got != 0 {
		t.Fatalf("expected old farmer back at 0, got %v", got)
	}
	if got := f.balance(t, b); got != 1000 {
		t.Fatalf("expected new farmer at 1000, got %v", got)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	p := cashPayment(farmerID, 300)
	if err := f.payments.SavePayment(ctx, p); err != nil {
		t.Fatalf("save payment: %v", err)
	}
	if got := f.balance(t, farmerID); got != -300 {
		t.Fatalf("expected balance -300, got %v", got)
	}

	p.Amount = 500
	if err := f.payments.UpdatePayment(ctx, p); err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if got := f.balance(t, farmerID); got != -500 {
		t.Fatalf("expected balance -500 after edit, got %v", got)
	}

	if err := f.payments.DeletePayment(ctx, p.ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if got := f.balance(t, farmerID); got != 0 {
		t.Fatalf("expected balance 0 after delete, got %v", got)
	}
}

func TestValidationFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 0, billing.StatusCompleted)
	err := f.supplies.SaveSupplyEntry(ctx, entry)
	if !errors.Is(err, billing.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	entries, err := f.supplies.ListEntries(ctx, "fam1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected entry was written: %v", entries)
	}
	if got := f.balance(t, farmerID); got != 0 {
		t.Fatalf("rejected entry moved balance to %v", got)
	}
}

func TestFailedIncrementDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	f.store.FailIncrementsFor(farmerID, errors.New("store unavailable"))
	entry := timeEntry(farmerID, 100, billing.StatusCompleted)
	if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
		t.Fatalf("record write should survive increment failure: %v", err)
	}
	got, err := f.supplies.GetSupplyEntry(ctx, entry.ID)
	if err != nil || got == nil {
		t.Fatalf("entry missing after drift: %v", err)
	}
	if bal := f.balance(t, farmerID); bal != 0 {
		t.Fatalf("expected drifted balance 0, got %v", bal)
	}
}

func TestDeleteAllLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	if err := f.supplies.SaveSupplyEntry(ctx, timeEntry(farmerID, 100, billing.StatusCompleted)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.payments.SavePayment(ctx, cashPayment(farmerID, 200)); err != nil {
		t.Fatalf("pay: %v", err)
	}

	deleted, err := f.supplies.DeleteAllEntries(ctx, "fam1")
	if err != nil || deleted != 1 {
		t.Fatalf("delete all entries: %d %v", deleted, err)
	}
	deleted, err = f.payments.DeleteAllPayments(ctx, "fam1")
	if err != nil || deleted != 1 {
		t.Fatalf("delete all payments: %d %v", deleted, err)
	}
	if got := f.balance(t, farmerID); got != 300 {
		t.Fatalf("bulk delete changed balance: got %v, want 300", got)
	}
}

// TestBalanceInvariantUnderRandomMutations drives a deterministic random
// sequence of supply and payment mutations against one farmer and checks
// that the stored balance always equals completed supply amounts minus
// payment amounts.
func TestBalanceInvariantUnderRandomMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	rng := rand.New(rand.NewSource(42))
	var supplyIDs, paymentIDs []string

	for i := 0; i < 300; i++ {
		switch op := rng.Intn(6); op {
		case 0: // create supply, draft or completed
			status := billing.StatusCompleted
			if rng.Intn(3) == 0 {
				status = billing.StatusDraft
			}
			entry := timeEntry(farmerID, float64(50+rng.Intn(200)), status)
			if err := f.supplies.SaveSupplyEntry(ctx, entry); err != nil {
				t.Fatalf("op %d save supply: %v", i, err)
			}
			supplyIDs = append(supplyIDs, entry.ID)
		case 1: // edit supply, possibly flipping status
			if len(supplyIDs) == 0 {
				continue
			}
			id := supplyIDs[rng.Intn(len(supplyIDs))]
			entry, err := f.supplies.GetSupplyEntry(ctx, id)
			if err != nil || entry == nil {
				t.Fatalf("op %d get supply: %v", i, err)
			}
			entry.Rate = float64(50 + rng.Intn(200))
			if rng.Intn(2) == 0 {
				if entry.Status == billing.StatusCompleted {
					entry.Status = billing.StatusDraft
				} else {
					entry.Status = billing.StatusCompleted
				}
			}
			if err := f.supplies.UpdateSupplyEntry(ctx, entry); err != nil {
				t.Fatalf("op %d update supply: %v", i, err)
			}
		case 2: // delete supply
			if len(supplyIDs) == 0 {
				continue
			}
			idx := rng.Intn(len(supplyIDs))
			if err := f.supplies.DeleteSupplyEntry(ctx, supplyIDs[idx]); err != nil {
				t.Fatalf("op %d delete supply: %v", i, err)
			}
			supplyIDs = append(supplyIDs[:idx], supplyIDs[idx+1:]...)
		case 3: // create payment
			p := cashPayment(farmerID, float64(10+rng.Intn(500)))
			if err := f.payments.SavePayment(ctx, p); err != nil {
				t.Fatalf("op %d save payment: %v", i, err)
			}
			paymentIDs = append(paymentIDs, p.ID)
		case 4: // edit payment amount
			if len(paymentIDs) == 0 {
				continue
			}
			id := paymentIDs[rng.Intn(len(paymentIDs))]
			p, err := f.payments.GetPayment(ctx, id)
			if err != nil || p == nil {
				t.Fatalf("op %d get payment: %v", i, err)
			}
			p.Amount = float64(10 + rng.Intn(500))
			if err := f.payments.UpdatePayment(ctx, p); err != nil {
				t.Fatalf("op %d update payment: %v", i, err)
			}
		case 5: // delete payment
			if len(paymentIDs) == 0 {
				continue
			}
			idx := rng.Intn(len(paymentIDs))
			if err := f.payments.DeletePayment(ctx, paymentIDs[idx]); err != nil {
				t.Fatalf("op %d delete payment: %v", i, err)
			}
			paymentIDs = append(paymentIDs[:idx], paymentIDs[idx+1:]...)
		}
	}

	entries, err := f.supplies.ListEntries(ctx, "fam1")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	payments, err := f.payments.ListPayments(ctx, "fam1")
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}

	var want float64
	for _, e := range entries {
		if e.Status == billing.StatusCompleted {
			want += e.Amount
		}
	}
	for _, p := range payments {
		want -= p.Amount
	}

	if got := f.balance(t, farmerID); math.Abs(got-want) > 1e-6 {
		t.Fatalf("balance %v diverged from record sum %v (%d entries, %d payments)",
			got, want, len(entries), len(payments))
	}
}

func TestUpdateMissingRecordReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmerID := f.addFarmer(t, "Ramesh")

	entry := timeEntry(farmerID, 100, billing.StatusCompleted)
	entry.ID = "ghost"
	if err := f.supplies.UpdateSupplyEntry(ctx, entry); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	p := cashPayment(farmerID, 100)
	p.ID = "ghost"
	if err := f.payments.UpdatePayment(ctx, p); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestObserveStreamsAreShared(t *testing.T) {
	f := newFixture(t)
	farmerID := f.addFarmer(t, "Ramesh")

	if f.farmers.ObserveFarmer(farmerID) != f.farmers.ObserveFarmer(farmerID) {
		t.Fatal("document streams not shared per farmer")
	}
	if f.supplies.ObserveEntries("fam1") != f.supplies.ObserveEntries("fam1") {
		t.Fatal("query streams not shared per family")
	}
	if f.payments.ObservePayments("fam1") == f.payments.ObservePayments("fam2") {
		t.Fatal("distinct families must not share a stream")
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newID()
		if len(id) != 32 {
			t.Fatalf("unexpected id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id at %d", i)
		}
		seen[id] = true
	}
}
