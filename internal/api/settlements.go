package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nexapay/settled/internal/domain"
)

// ─── Balance ────────────────────────────────────────────────────────────────

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	merchantID := r.URL.Query().Get("merchant_id")
	env := domain.Environment(r.URL.Query().Get("environment"))
	if merchantID == "" {
		writeDomainError(w, domain.ErrInvalidMerchant)
		return
	}

	balance, err := s.ledger.ComputeBalance(r.Context(), merchantID, env)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": balance})
}

// ─── Settlement creation ────────────────────────────────────────────────────

type requestSettlementBody struct {
	MerchantID  string      `json:"merchant_id"`
	Environment string      `json:"environment"`
	Amount      json.Number `json:"amount"`
}

func (s *Server) handleRequestSettlement(w http.ResponseWriter, r *http.Request) {
	var body requestSettlementBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if body.MerchantID == "" {
		writeDomainError(w, domain.ErrInvalidMerchant)
		return
	}

	amount, err := decimal.NewFromString(body.Amount.String())
	if err != nil {
		writeDomainError(w, domain.ErrInvalidAmount)
		return
	}

	settlement, err := s.ledger.Request(r.Context(), body.MerchantID, domain.Environment(body.Environment), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": settlement})
}

// ─── Listing ────────────────────────────────────────────────────────────────

// handleMerchantSettlements is the merchant self-service view; merchant_id
// is mandatory here.
func (s *Server) handleMerchantSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("merchant_id") == "" {
		writeDomainError(w, domain.ErrInvalidMerchant)
		return
	}
	s.listSettlements(w, r, domain.SettlementFilter{
		Environment: domain.Environment(q.Get("environment")),
		Status:      domain.SettlementStatus(q.Get("status")),
		MerchantID:  q.Get("merchant_id"),
	})
}

// handleAdminSettlements is the cross-merchant review view; a merchant_id
// filter is forbidden here.
func (s *Server) handleAdminSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("merchant_id") != "" {
		writeError(w, http.StatusBadRequest, "bad_request", "merchant_id filter is not allowed on the admin view")
		return
	}
	s.listSettlements(w, r, domain.SettlementFilter{
		Environment: domain.Environment(q.Get("environment")),
		Status:      domain.SettlementStatus(q.Get("status")),
	})
}

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request, f domain.SettlementFilter) {
	page := queryInt(r, "page", 1)
	result, err := s.ledger.List(r.Context(), f, page, s.pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := s.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": settlement})
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := s.ledger.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": trail})
}

// ─── Admin actions ──────────────────────────────────────────────────────────

type adminActionBody struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body adminActionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.ledger.Approve(r.Context(), chi.URLParam(r, "id"), body.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var body adminActionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if body.Reason == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "reason is required")
		return
	}
	if err := s.ledger.Reject(r.Context(), chi.URLParam(r, "id"), body.AdminID, body.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// ─── Payment execution callback ─────────────────────────────────────────────

type markPaidBody struct {
	ExternalRef string `json:"external_ref"`
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var body markPaidBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := s.ledger.MarkPaid(r.Context(), chi.URLParam(r, "id"), body.ExternalRef); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// ─── Transactions (read-only feed view) ─────────────────────────────────────

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	merchantID := q.Get("merchant_id")
	env := domain.Environment(q.Get("environment"))
	if merchantID == "" {
		writeDomainError(w, domain.ErrInvalidMerchant)
		return
	}
	if !env.Valid() {
		writeDomainError(w, domain.ErrInvalidEnvironment)
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	items, total, err := s.txns.ListTransactions(r.Context(), merchantID, env,
		domain.TransactionStatus(q.Get("status")), (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	lastPage := (total + s.pageSize - 1) / s.pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"items":       items,
			"total_count": total,
			"page":        page,
			"last_page":   lastPage,
		},
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
