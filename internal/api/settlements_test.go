package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexapay/settled/internal/app/ledger"
	"github.com/nexapay/settled/internal/domain"
	"github.com/nexapay/settled/internal/infra/sqlite"
)

func setupServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(ledger.New(db, db), db, 10), db
}

func seedCredit(t *testing.T, db *sqlite.DB, merchant string, env domain.Environment, amount string) {
	t.Helper()
	err := db.UpsertTransaction(context.Background(), domain.Transaction{
		ID:          fmt.Sprintf("%s-%s-%s", merchant, env, amount),
		MerchantID:  merchant,
		Environment: env,
		Amount:      decimal.RequireFromString(amount),
		Status:      domain.TxSuccess,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("seed credit: %v", err)
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s %s: %v (body %q)", method, path, err, w.Body.String())
	}
	return w, resp
}

func errorKind(t *testing.T, resp map[string]interface{}) string {
	t.Helper()
	e, ok := resp["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %v", resp)
	}
	kind, _ := e["kind"].(string)
	return kind
}

func TestHealthAndVersion(t *testing.T) {
	server, _ := setupServer(t)
	h := server.Handler()

	w, resp := doJSON(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("health: code=%d resp=%v", w.Code, resp)
	}

	w, resp = doJSON(t, h, http.MethodGet, "/api/version", "")
	if w.Code != http.StatusOK || resp["version"] != Version {
		t.Errorf("version: code=%d resp=%v", w.Code, resp)
	}
}

func TestRequestSettlementEndpoint(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "1000.00")

	w, resp := doJSON(t, h, http.MethodPost, "/api/settlements",
		`{"merchant_id":"m1","environment":"live","amount":600.00}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, body %v", w.Code, resp)
	}
	data := resp["data"].(map[string]interface{})
	if data["status"] != "pending" {
		t.Errorf("status = %v, want pending", data["status"])
	}

	// Overdraw is refused with the insufficient_balance kind.
	w, resp = doJSON(t, h, http.MethodPost, "/api/settlements",
		`{"merchant_id":"m1","environment":"live","amount":"500.00"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d, want 422", w.Code)
	}
	if kind := errorKind(t, resp); kind != "insufficient_balance" {
		t.Errorf("kind = %q", kind)
	}

	// Non-positive and garbage amounts are invalid_amount.
	for _, body := range []string{
		`{"merchant_id":"m1","environment":"live","amount":0}`,
		`{"merchant_id":"m1","environment":"live","amount":-3}`,
		`{"merchant_id":"m1","environment":"live","amount":"abc"}`,
	} {
		w, resp = doJSON(t, h, http.MethodPost, "/api/settlements", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: code = %d, want 400", body, w.Code)
		}
		if kind := errorKind(t, resp); kind != "invalid_amount" {
			t.Errorf("body %s: kind = %q", body, kind)
		}
	}
}

func TestBalanceEndpoint(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "250.75")

	w, resp := doJSON(t, h, http.MethodGet, "/api/balance?merchant_id=m1&environment=live", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	data := resp["data"].(map[string]interface{})
	if data["availableBalance"] != "250.75" {
		t.Errorf("availableBalance = %v", data["availableBalance"])
	}

	w, resp = doJSON(t, h, http.MethodGet, "/api/balance?environment=live", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing merchant_id: code = %d, want 400", w.Code)
	}
	if kind := errorKind(t, resp); kind != "invalid_merchant" {
		t.Errorf("kind = %q, want invalid_merchant", kind)
	}

	w, resp = doJSON(t, h, http.MethodGet, "/api/balance?merchant_id=m1&environment=prod", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad environment: code = %d, want 400", w.Code)
	}
	if kind := errorKind(t, resp); kind != "invalid_environment" {
		t.Errorf("kind = %q", kind)
	}
}

func TestAdminWorkflowEndpoints(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "500")

	_, resp := doJSON(t, h, http.MethodPost, "/api/settlements",
		`{"merchant_id":"m1","environment":"live","amount":"120"}`)
	id := resp["data"].(map[string]interface{})["id"].(string)

	// MarkPaid before approval conflicts.
	w, resp := doJSON(t, h, http.MethodPost, "/api/internal/settlements/"+id+"/paid", `{"external_ref":"wire-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("premature paid: code = %d, want 409", w.Code)
	}
	if kind := errorKind(t, resp); kind != "invalid_transition" {
		t.Errorf("kind = %q", kind)
	}

	w, _ = doJSON(t, h, http.MethodPost, "/api/admin/settlements/"+id+"/approve", `{"admin_id":"admin-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: code = %d", w.Code)
	}

	// Reject after approve conflicts.
	w, resp = doJSON(t, h, http.MethodPost, "/api/admin/settlements/"+id+"/reject", `{"admin_id":"admin-2","reason":"late"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("reject after approve: code = %d, want 409", w.Code)
	}

	w, _ = doJSON(t, h, http.MethodPost, "/api/internal/settlements/"+id+"/paid", `{"external_ref":"wire-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("paid: code = %d", w.Code)
	}

	// Audit trail shows the full path.
	w, resp = doJSON(t, h, http.MethodGet, "/api/settlements/"+id+"/audit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit: code = %d", w.Code)
	}
	trail := resp["data"].([]interface{})
	if len(trail) != 3 {
		t.Errorf("trail has %d entries, want 3", len(trail))
	}

	// Unknown id is 404.
	w, resp = doJSON(t, h, http.MethodPost, "/api/admin/settlements/nope/approve", `{"admin_id":"a"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: code = %d, want 404", w.Code)
	}
	if kind := errorKind(t, resp); kind != "not_found" {
		t.Errorf("kind = %q", kind)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "100")

	_, resp := doJSON(t, h, http.MethodPost, "/api/settlements",
		`{"merchant_id":"m1","environment":"live","amount":"50"}`)
	id := resp["data"].(map[string]interface{})["id"].(string)

	w, _ := doJSON(t, h, http.MethodPost, "/api/admin/settlements/"+id+"/reject", `{"admin_id":"admin-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reject without reason: code = %d, want 400", w.Code)
	}
}

func TestListEndpointsViews(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "1000")
	seedCredit(t, db, "m2", domain.EnvLive, "1000")

	for i := 0; i < 3; i++ {
		doJSON(t, h, http.MethodPost, "/api/settlements", `{"merchant_id":"m1","environment":"live","amount":"10"}`)
	}
	doJSON(t, h, http.MethodPost, "/api/settlements", `{"merchant_id":"m2","environment":"live","amount":"10"}`)

	// Merchant view requires merchant_id and sees only its own records.
	w, _ := doJSON(t, h, http.MethodGet, "/api/settlements?environment=live", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("merchant list without merchant_id: code = %d, want 400", w.Code)
	}
	w, resp := doJSON(t, h, http.MethodGet, "/api/settlements?environment=live&merchant_id=m1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("merchant list: code = %d", w.Code)
	}
	data := resp["data"].(map[string]interface{})
	if data["total_count"] != float64(3) {
		t.Errorf("merchant total = %v, want 3", data["total_count"])
	}

	// Admin view is cross-merchant and forbids merchant_id.
	w, resp = doJSON(t, h, http.MethodGet, "/api/admin/settlements?environment=live&status=pending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin list: code = %d", w.Code)
	}
	data = resp["data"].(map[string]interface{})
	if data["total_count"] != float64(4) {
		t.Errorf("admin total = %v, want 4", data["total_count"])
	}

	w, _ = doJSON(t, h, http.MethodGet, "/api/admin/settlements?environment=live&merchant_id=m1", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("admin list with merchant_id: code = %d, want 400", w.Code)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	server, db := setupServer(t)
	h := server.Handler()
	seedCredit(t, db, "m1", domain.EnvLive, "100")
	seedCredit(t, db, "m1", domain.EnvLive, "200")

	w, resp := doJSON(t, h, http.MethodGet, "/api/transactions?merchant_id=m1&environment=live&status=success", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	data := resp["data"].(map[string]interface{})
	if data["total_count"] != float64(2) {
		t.Errorf("total = %v, want 2", data["total_count"])
	}
	if data["last_page"] != float64(1) {
		t.Errorf("last_page = %v, want 1", data["last_page"])
	}
}

func TestMetricsEndpointGated(t *testing.T) {
	server, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: code = %d, want 404", w.Code)
	}

	server.EnableMetrics()
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("metrics enabled: code = %d, want 200", w.Code)
	}
}
