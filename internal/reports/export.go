// Package reports renders farmer statements and family ledgers for
// download.
package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"waterledger/internal/billing"
	"waterledger/internal/records/domain"
)

// BuildFarmerStatementPDF renders a statement for one farmer: identity,
// current balance, then the supply and payment history.
func BuildFarmerStatementPDF(farmer *domain.Farmer, entries []domain.SupplyEntry, payments []domain.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Water Supply Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Farmer: %s", farmer.Name))
	pdf.Ln(5)
	if farmer.Mobile != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Mobile: %s", farmer.Mobile))
		pdf.Ln(5)
	}
	if farmer.FarmLocation != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Location: %s", farmer.FarmLocation))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Outstanding Balance: %.2f", farmer.Balance))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(28, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Hours", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Rate", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, e := range entries {
		pdf.CellFormat(28, 6, e.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(22, 6, e.BillingMethod, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", e.TotalTimeUsed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", e.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, fmt.Sprintf("%.2f", e.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, e.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Payment Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Method", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, p := range payments {
		pdf.CellFormat(40, 6, p.PaymentDate, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, p.PaymentMethod, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", p.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders the family ledger: a per-farmer summary sheet
// plus the raw supply and payment rows.
func BuildLedgerXLSX(farmers []domain.Farmer, entries []domain.SupplyEntry, payments []domain.Payment) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	suppliesSheet := "supplies"
	paymentsSheet := "payments"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(suppliesSheet)
	f.NewSheet(paymentsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Farmer")
	_ = f.SetCellValue(summarySheet, "B1", "Billed")
	_ = f.SetCellValue(summarySheet, "C1", "Paid")
	_ = f.SetCellValue(summarySheet, "D1", "Balance")

	billed := make(map[string]float64)
	paid := make(map[string]float64)
	for _, e := range entries {
		if e.Status == billing.StatusCompleted {
			billed[e.FarmerID] += e.Amount
		}
	}
	for _, p := range payments {
		paid[p.FarmerID] += p.Amount
	}
	for i, farmer := range farmers {
		row := i + 2
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), farmer.Name)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), billed[farmer.ID])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), paid[farmer.ID])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), farmer.Balance)
	}

	_ = f.SetCellValue(suppliesSheet, "A1", "Date")
	_ = f.SetCellValue(suppliesSheet, "B1", "Farmer")
	_ = f.SetCellValue(suppliesSheet, "C1", "Method")
	_ = f.SetCellValue(suppliesSheet, "D1", "Hours")
	_ = f.SetCellValue(suppliesSheet, "E1", "Rate")
	_ = f.SetCellValue(suppliesSheet, "F1", "Amount")
	_ = f.SetCellValue(suppliesSheet, "G1", "Status")
	for i, e := range entries {
		row := i + 2
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("A%d", row), e.Date)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("B%d", row), e.FarmerName)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("C%d", row), e.BillingMethod)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("D%d", row), e.TotalTimeUsed)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("E%d", row), e.Rate)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("F%d", row), e.Amount)
		_ = f.SetCellValue(suppliesSheet, fmt.Sprintf("G%d", row), e.Status)
	}

	_ = f.SetCellValue(paymentsSheet, "A1", "Date")
	_ = f.SetCellValue(paymentsSheet, "B1", "Farmer")
	_ = f.SetCellValue(paymentsSheet, "C1", "Method")
	_ = f.SetCellValue(paymentsSheet, "D1", "Amount")
	for i, p := range payments {
		row := i + 2
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("A%d", row), p.PaymentDate)
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("B%d", row), p.FarmerName)
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("C%d", row), p.PaymentMethod)
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("D%d", row), p.Amount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSuppliesCSV streams supply entries as CSV.
func WriteSuppliesCSV(w io.Writer, entries []domain.SupplyEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "farmer", "method", "hours", "rate", "amount", "status"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.Date,
			e.FarmerName,
			e.BillingMethod,
			fmt.Sprintf("%.2f", e.TotalTimeUsed),
			fmt.Sprintf("%.2f", e.Rate),
			fmt.Sprintf("%.2f", e.Amount),
			e.Status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
