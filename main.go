package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "waterledger/internal/api/http"
	"waterledger/internal/auth"
	"waterledger/internal/docstore/postgres"
	"waterledger/internal/ledger"
	"waterledger/internal/observability/metrics"
	"waterledger/internal/records/application"
	"waterledger/internal/records/docrepo"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init()

	store, err := postgres.NewStore(db, logger)
	if err != nil {
		logger.Fatalf("docstore error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("docstore schema error: %v", err)
	}
	// Relay of changes made by other processes; local writes echo through
	// the store's own hub.
	go store.Listen(ctx, cfg.DatabaseURL)

	farmerRepo, err := docrepo.NewFarmerRepository(store)
	if err != nil {
		logger.Fatalf("farmer repo error: %v", err)
	}
	supplyRepo, err := docrepo.NewSupplyRepository(store)
	if err != nil {
		logger.Fatalf("supply repo error: %v", err)
	}
	paymentRepo, err := docrepo.NewPaymentRepository(store)
	if err != nil {
		logger.Fatalf("payment repo error: %v", err)
	}

	applier, err := ledger.NewApplier(store, logger)
	if err != nil {
		logger.Fatalf("ledger applier error: %v", err)
	}

	farmerService, err := application.NewFarmerService(farmerRepo, store, logger)
	if err != nil {
		logger.Fatalf("farmer service error: %v", err)
	}
	supplyService, err := application.NewSupplyService(supplyRepo, farmerRepo, applier, store, logger)
	if err != nil {
		logger.Fatalf("supply service error: %v", err)
	}
	paymentService, err := application.NewPaymentService(paymentRepo, farmerRepo, applier, store, logger)
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	farmersHandler := apihttp.NewFarmersHandler(farmerService)
	suppliesHandler := apihttp.NewSuppliesHandler(supplyService)
	paymentsHandler := apihttp.NewPaymentsHandler(paymentService)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/farmers", farmersHandler)
	mux.Handle("/api/v1/farmers/", farmersHandler)
	mux.Handle("/api/v1/farmers/stream", apihttp.NewFarmersStreamHandler(farmerService))
	mux.Handle("/api/v1/supplies", suppliesHandler)
	mux.Handle("/api/v1/supplies/", suppliesHandler)
	mux.Handle("/api/v1/supplies/stream", apihttp.NewSuppliesStreamHandler(supplyService))
	mux.Handle("/api/v1/payments", paymentsHandler)
	mux.Handle("/api/v1/payments/", paymentsHandler)
	mux.Handle("/api/v1/payments/stream", apihttp.NewPaymentsStreamHandler(paymentService))
	mux.Handle("/api/v1/dashboard", apihttp.NewDashboardHandler(farmerService, supplyService, paymentService))
	mux.Handle("/api/v1/dashboard/stream", apihttp.NewDashboardStreamHandler(farmerService, supplyService, paymentService))
	mux.Handle("/api/v1/records", apihttp.NewRecordsWipeHandler(supplyService, paymentService))
	mux.Handle("/api/v1/exports/farmers/", apihttp.NewStatementPDFHandler(farmerService, supplyService, paymentService))
	mux.Handle("/api/v1/exports/ledger.xlsx", apihttp.NewLedgerXLSXHandler(farmerService, supplyService, paymentService))
	mux.Handle("/api/v1/exports/supplies.csv", apihttp.NewSuppliesCSVHandler(supplyService))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		metrics.HTTPRequest(strconv.Itoa(resp.status), elapsed.Seconds())
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the event-stream endpoints working through the wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
