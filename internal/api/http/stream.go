package apihttp

import (
	"encoding/json"
	"net/http"

	"waterledger/internal/records/application"
	"waterledger/internal/views"
)

// serveSSE attaches to a snapshot stream and relays every push as one SSE
// event until the client disconnects. Detaching is what lets the stream
// layer tear down its watch when the last client leaves.
func serveSSE[T any](w http.ResponseWriter, r *http.Request, event string, attach func() (<-chan T, func())) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, detach := attach()
	defer detach()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(snapshot)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: " + event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

// FarmersStreamHandler serves GET /api/v1/farmers/stream.
type FarmersStreamHandler struct {
	farmers *application.FarmerService
}

// NewFarmersStreamHandler constructs a FarmersStreamHandler.
func NewFarmersStreamHandler(farmers *application.FarmerService) *FarmersStreamHandler {
	return &FarmersStreamHandler{farmers: farmers}
}

func (h *FarmersStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.farmers == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}
	serveSSE(w, r, "farmers", h.farmers.ObserveFarmers(familyID).Attach)
}

// SuppliesStreamHandler serves GET /api/v1/supplies/stream.
type SuppliesStreamHandler struct {
	supplies *application.SupplyService
}

// NewSuppliesStreamHandler constructs a SuppliesStreamHandler.
func NewSuppliesStreamHandler(supplies *application.SupplyService) *SuppliesStreamHandler {
	return &SuppliesStreamHandler{supplies: supplies}
}

func (h *SuppliesStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.supplies == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}
	serveSSE(w, r, "supplies", h.supplies.ObserveEntries(familyID).Attach)
}

// PaymentsStreamHandler serves GET /api/v1/payments/stream.
type PaymentsStreamHandler struct {
	payments *application.PaymentService
}

// NewPaymentsStreamHandler constructs a PaymentsStreamHandler.
func NewPaymentsStreamHandler(payments *application.PaymentService) *PaymentsStreamHandler {
	return &PaymentsStreamHandler{payments: payments}
}

func (h *PaymentsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.payments == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}
	serveSSE(w, r, "payments", h.payments.ObservePayments(familyID).Attach)
}

// DashboardStreamHandler serves GET /api/v1/dashboard/stream: a fused
// summary recomputed on every farmer, supply or payment change.
type DashboardStreamHandler struct {
	farmers  *application.FarmerService
	supplies *application.SupplyService
	payments *application.PaymentService
}

// NewDashboardStreamHandler constructs a DashboardStreamHandler.
func NewDashboardStreamHandler(
	farmers *application.FarmerService,
	supplies *application.SupplyService,
	payments *application.PaymentService,
) *DashboardStreamHandler {
	return &DashboardStreamHandler{farmers: farmers, supplies: supplies, payments: payments}
}

func (h *DashboardStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.farmers == nil || h.supplies == nil || h.payments == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	familyID, ok := familyOr401(w, r)
	if !ok {
		return
	}
	dashboard := views.NewDashboard(
		h.farmers.ObserveFarmers(familyID),
		h.supplies.ObserveEntries(familyID),
		h.payments.ObservePayments(familyID),
	)
	serveSSE(w, r, "summary", dashboard.Attach)
}
