package apihttp

import (
	"net/http"
	"strings"

	"waterledger/internal/records/application"
	"waterledger/internal/records/domain"
	"waterledger/internal/reports"
)

func filterEntriesByFarmer(entries []domain.SupplyEntry, farmerID string) []domain.SupplyEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.FarmerID == farmerID {
			out = append(out, e)
		}
	}
	return out
}

func filterPaymentsByFarmer(payments []domain.Payment, farmerID string) []domain.Payment {
	out := payments[:0:0]
	for _, p := range payments {
		if p.FarmerID == farmerID {
			out = append(out, p)
		}
	}
	return out
}

// StatementPDFHandler serves GET /api/v1/exports/farmers/{id}/statement.pdf.
type StatementPDFHandler struct {
	farmers  *application.FarmerService
	supplies *application.SupplyService
	payments *application.PaymentService
}

// NewStatementPDFHandler constructs a StatementPDFHandler.
func NewStatementPDFHandler(
	farmers *application.FarmerService,
	supplies *application.SupplyService,
	payments *application.PaymentService,
) *StatementPDFHandler {
	return &StatementPDFHandler{farmers: farmers, supplies: supplies, payments: payments}
}

func (h *StatementPDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.farmers == nil || h.supplies == nil || h.payments == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/exports/farmers/")
	farmerID := strings.TrimSuffix(path, "/statement.pdf")
	if farmerID == "" || farmerID == path {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	farmer, err := h.farmers.GetFarmer(r.Context(), farmerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if farmer == nil || farmer.FamilyID != familyID {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	entries, err := h.supplies.ListEntries(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	payments, err := h.payments.ListPayments(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries = filterEntriesByFarmer(entries, farmerID)
	payments = filterPaymentsByFarmer(payments, farmerID)

	out, err := reports.BuildFarmerStatementPDF(farmer, entries, payments)
	if err != nil {
		http.Error(w, "render statement error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.pdf"`)
	_, _ = w.Write(out)
}

// LedgerXLSXHandler serves GET /api/v1/exports/ledger.xlsx.
type LedgerXLSXHandler struct {
	farmers  *application.FarmerService
	supplies *application.SupplyService
	payments *application.PaymentService
}

// NewLedgerXLSXHandler constructs a LedgerXLSXHandler.
func NewLedgerXLSXHandler(
	farmers *application.FarmerService,
	supplies *application.SupplyService,
	payments *application.PaymentService,
) *LedgerXLSXHandler {
	return &LedgerXLSXHandler{farmers: farmers, supplies: supplies, payments: payments}
}

func (h *LedgerXLSXHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.farmers == nil || h.supplies == nil || h.payments == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	farmers, err := h.farmers.ListFarmers(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entries, err := h.supplies.ListEntries(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	payments, err := h.payments.ListPayments(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out, err := reports.BuildLedgerXLSX(farmers, entries, payments)
	if err != nil {
		http.Error(w, "render ledger error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	_, _ = w.Write(out)
}

// SuppliesCSVHandler serves GET /api/v1/exports/supplies.csv.
type SuppliesCSVHandler struct {
	supplies *application.SupplyService
}

// NewSuppliesCSVHandler constructs a SuppliesCSVHandler.
func NewSuppliesCSVHandler(supplies *application.SupplyService) *SuppliesCSVHandler {
	return &SuppliesCSVHandler{supplies: supplies}
}

func (h *SuppliesCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.supplies == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	list, err := h.supplies.ListEntries(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="supplies.csv"`)
	_ = reports.WriteSuppliesCSV(w, list)
}
