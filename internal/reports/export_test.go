package reports

import (
	"bytes"
	"strings"
	"testing"

	"waterledger/internal/billing"
	"waterledger/internal/records/domain"
)

func sampleData() (*domain.Farmer, []domain.SupplyEntry, []domain.Payment) {
	farmer := &domain.Farmer{ID: "f1", Name: "Ramesh", Balance: 300}
	entries := []domain.SupplyEntry{
		{FarmerID: "f1", FarmerName: "Ramesh", Date: "2026-08-01", BillingMethod: billing.MethodTime,
			TotalTimeUsed: 5, Rate: 100, Amount: 500, Status: billing.StatusCompleted},
		{FarmerID: "f1", FarmerName: "Ramesh", Date: "2026-08-02", BillingMethod: billing.MethodMeter,
			Status: billing.StatusDraft},
	}
	payments := []domain.Payment{
		{FarmerID: "f1", FarmerName: "Ramesh", PaymentDate: "2026-08-05", PaymentMethod: "cash", Amount: 200},
	}
	return farmer, entries, payments
}

func TestBuildFarmerStatementPDF(t *testing.T) {
	farmer, entries, payments := sampleData()
	out, err := BuildFarmerStatementPDF(farmer, entries, payments)
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF, starts with %q", out[:min(8, len(out))])
	}
}

func TestBuildLedgerXLSX(t *testing.T) {
	farmer, entries, payments := sampleData()
	out, err := BuildLedgerXLSX([]domain.Farmer{*farmer}, entries, payments)
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(out, []byte("PK")) {
		t.Fatalf("output is not a zip archive")
	}
}

func TestWriteSuppliesCSV(t *testing.T) {
	_, entries, _ := sampleData()
	var buf bytes.Buffer
	if err := WriteSuppliesCSV(&buf, entries); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "date,farmer,method,hours,rate,amount,status" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "500.00") || !strings.Contains(lines[1], "completed") {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
}
