// Package apihttp exposes the record services over HTTP. Handlers resolve
// the family partition from the authenticated session; by-id routes verify
// the loaded record belongs to it before answering.
package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"waterledger/internal/auth"
	"waterledger/internal/billing"
	"waterledger/internal/docstore"
	"waterledger/internal/records/application"
	"waterledger/internal/records/domain"
	"waterledger/internal/views"
)

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, docstore.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrFamilyMismatch), errors.Is(err, auth.ErrNoFamily):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func familyOr401(w http.ResponseWriter, r *http.Request) (string, bool) {
	familyID := auth.FamilyIDFromContext(r.Context())
	if familyID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return familyID, true
}

// FarmersHandler serves /api/v1/farmers and /api/v1/farmers/{id}.
type FarmersHandler struct {
	farmers *application.FarmerService
}

// NewFarmersHandler constructs a FarmersHandler.
func NewFarmersHandler(farmers *application.FarmerService) *FarmersHandler {
	return &FarmersHandler{farmers: farmers}
}

func (h *FarmersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.farmers == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/farmers")
	id = strings.Trim(id, "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		farmers, err := h.farmers.ListFarmers(r.Context(), familyID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, farmers)
	case id == "" && r.Method == http.MethodPost:
		var farmer domain.Farmer
		if err := json.NewDecoder(r.Body).Decode(&farmer); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		farmer.ID = ""
		farmer.FamilyID = familyID
		farmer.UserID = auth.UserIDFromContext(r.Context())
		farmer.Balance = 0
		if err := h.farmers.SaveFarmer(r.Context(), &farmer); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, farmer)
	case id != "" && r.Method == http.MethodGet:
		farmer, ok := h.load(w, r, id)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, farmer)
	case id != "" && r.Method == http.MethodPut:
		existing, ok := h.load(w, r, id)
		if !ok {
			return
		}
		var farmer domain.Farmer
		if err := json.NewDecoder(r.Body).Decode(&farmer); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		farmer.ID = id
		farmer.FamilyID = familyID
		farmer.Balance = existing.Balance
		farmer.CreatedAt = existing.CreatedAt
		if err := h.farmers.SaveFarmer(r.Context(), &farmer); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, farmer)
	case id != "" && r.Method == http.MethodDelete:
		if _, ok := h.load(w, r, id); !ok {
			return
		}
		if err := h.farmers.DeactivateFarmer(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// load fetches a farmer and enforces the family partition. On any failure
// it writes the response and reports false.
func (h *FarmersHandler) load(w http.ResponseWriter, r *http.Request, id string) (*domain.Farmer, bool) {
	farmer, err := h.farmers.GetFarmer(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if farmer == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	if err := auth.EnsureFamily(r.Context(), farmer.FamilyID); err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return farmer, true
}

// SuppliesHandler serves /api/v1/supplies and /api/v1/supplies/{id}.
type SuppliesHandler struct {
	supplies *application.SupplyService
}

// NewSuppliesHandler constructs a SuppliesHandler.
func NewSuppliesHandler(supplies *application.SupplyService) *SuppliesHandler {
	return &SuppliesHandler{supplies: supplies}
}

func (h *SuppliesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.supplies == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/supplies")
	id = strings.Trim(id, "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		var entries []domain.SupplyEntry
		var err error
		if since := r.URL.Query().Get("since"); since != "" {
			entries, err = h.supplies.ListEntriesSince(r.Context(), familyID, since)
		} else {
			entries, err = h.supplies.ListEntries(r.Context(), familyID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case id == "" && r.Method == http.MethodPost:
		var entry domain.SupplyEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		entry.ID = ""
		entry.FamilyID = familyID
		entry.UserID = auth.UserIDFromContext(r.Context())
		if err := h.supplies.SaveSupplyEntry(r.Context(), &entry); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	case id != "" && r.Method == http.MethodGet:
		entry, ok := h.load(w, r, id)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case id != "" && r.Method == http.MethodPut:
		if _, ok := h.load(w, r, id); !ok {
			return
		}
		var entry domain.SupplyEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		entry.ID = id
		entry.FamilyID = familyID
		if err := h.supplies.UpdateSupplyEntry(r.Context(), &entry); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case id != "" && r.Method == http.MethodDelete:
		if _, ok := h.load(w, r, id); !ok {
			return
		}
		if err := h.supplies.DeleteSupplyEntry(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SuppliesHandler) load(w http.ResponseWriter, r *http.Request, id string) (*domain.SupplyEntry, bool) {
	entry, err := h.supplies.GetSupplyEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if entry == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	if err := auth.EnsureFamily(r.Context(), entry.FamilyID); err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return entry, true
}

// PaymentsHandler serves /api/v1/payments and /api/v1/payments/{id}.
type PaymentsHandler struct {
	payments *application.PaymentService
}

// NewPaymentsHandler constructs a PaymentsHandler.
func NewPaymentsHandler(payments *application.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{payments: payments}
}

func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.payments == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments")
	id = strings.Trim(id, "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		payments, err := h.payments.ListPayments(r.Context(), familyID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payments)
	case id == "" && r.Method == http.MethodPost:
		var payment domain.Payment
		if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		payment.ID = ""
		payment.FamilyID = familyID
		payment.UserID = auth.UserIDFromContext(r.Context())
		if err := h.payments.SavePayment(r.Context(), &payment); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payment)
	case id != "" && r.Method == http.MethodGet:
		payment, ok := h.load(w, r, id)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, payment)
	case id != "" && r.Method == http.MethodPut:
		if _, ok := h.load(w, r, id); !ok {
			return
		}
		var payment domain.Payment
		if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		payment.ID = id
		payment.FamilyID = familyID
		if err := h.payments.UpdatePayment(r.Context(), &payment); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payment)
	case id != "" && r.Method == http.MethodDelete:
		if _, ok := h.load(w, r, id); !ok {
			return
		}
		if err := h.payments.DeletePayment(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *PaymentsHandler) load(w http.ResponseWriter, r *http.Request, id string) (*domain.Payment, bool) {
	payment, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if payment == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, false
	}
	if err := auth.EnsureFamily(r.Context(), payment.FamilyID); err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return payment, true
}

// DashboardHandler serves GET /api/v1/dashboard: the aggregate summary, a
// revenue trend and the month-over-month comparison.
type DashboardHandler struct {
	farmers  *application.FarmerService
	supplies *application.SupplyService
	payments *application.PaymentService
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(
	farmers *application.FarmerService,
	supplies *application.SupplyService,
	payments *application.PaymentService,
) *DashboardHandler {
	return &DashboardHandler{farmers: farmers, supplies: supplies, payments: payments}
}

type dashboardResponse struct {
	Summary views.Summary         `json:"summary"`
	Trend   []views.TrendPoint    `json:"trend"`
	Months  views.MonthComparison `json:"months"`
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	period := r.URL.Query().Get("period")
	if period == "" {
		period = views.PeriodWeek
	}
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, dashboardResponse{
		Summary: views.Summary{
			FarmerCount:   len(farmers),
			EntryCount:    len(entries),
			PaymentCount:  len(payments),
			TotalRevenue:  views.TotalRevenue(entries),
			TotalPayments: views.TotalPayments(payments),
			Outstanding:   views.TotalOutstanding(farmers),
		},
		Trend:  views.RevenueTrend(entries, period, now),
		Months: views.CompareMonths(entries, now),
	})
}

// RecordsWipeHandler serves DELETE /api/v1/records: it removes every
// supply entry and payment of the family. Balances are deliberately left
// as they are.
type RecordsWipeHandler struct {
	supplies *application.SupplyService
	payments *application.PaymentService
}

// NewRecordsWipeHandler constructs a RecordsWipeHandler.
func NewRecordsWipeHandler(supplies *application.SupplyService, payments *application.PaymentService) *RecordsWipeHandler {
	return &RecordsWipeHandler{supplies: supplies, payments: payments}
}

func (h *RecordsWipeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.supplies == nil || h.payments == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}

	entriesDeleted, err := h.supplies.DeleteAllEntries(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	paymentsDeleted, err := h.payments.DeleteAllPayments(r.Context(), familyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"entriesDeleted":  entriesDeleted,
		"paymentsDeleted": paymentsDeleted,
	})
}
