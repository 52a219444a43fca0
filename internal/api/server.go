// Package api provides the HTTP server for the settled daemon. It exposes
// the settlement ledger operations: balance, request/list settlements, the
// admin review actions, and the payment-execution callback.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexapay/settled/internal/app/ledger"
	"github.com/nexapay/settled/internal/domain"
)

// Version is the daemon version reported at /api/version.
const Version = "0.1.0"

// Server is the settled HTTP API server.
type Server struct {
	ledger         *ledger.Service
	txns           domain.TransactionSource
	pageSize       int
	metricsEnabled bool
}

// NewServer creates a new API server over the ledger service.
func NewServer(svc *ledger.Service, txns domain.TransactionSource, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = ledger.DefaultPageSize
	}
	return &Server{ledger: svc, txns: txns, pageSize: pageSize}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/balance", s.handleBalance)
		r.Get("/transactions", s.handleListTransactions)

		// Merchant self-service
		r.Post("/settlements", s.handleRequestSettlement)
		r.Get("/settlements", s.handleMerchantSettlements)
		r.Get("/settlements/{id}", s.handleGetSettlement)
		r.Get("/settlements/{id}/audit", s.handleAuditTrail)

		// Admin review (cross-merchant)
		r.Get("/admin/settlements", s.handleAdminSettlements)
		r.Post("/admin/settlements/{id}/approve", s.handleApprove)
		r.Post("/admin/settlements/{id}/reject", s.handleReject)

		// Payment execution callback
		r.Post("/internal/settlements/{id}/paid", s.handleMarkPaid)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with a machine-readable kind.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"kind":    kind,
			"message": msg,
		},
	})
}

// writeDomainError maps a ledger error to an HTTP response.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidMerchant):
		writeError(w, http.StatusBadRequest, "invalid_merchant", err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, domain.ErrInvalidEnvironment):
		writeError(w, http.StatusBadRequest, "invalid_environment", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}
