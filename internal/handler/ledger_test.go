package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/handler"
	"github.com/cjmcneal02/Biosec-Project/internal/ledger"
)

func setupLedgerRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handler.NewLedgerHandler(ledger.NewMemory(), zap.NewNop())
	h.Register(r.Group("/api/v1"))
	return r
}

func TestLedgerOverview_200(t *testing.T) {
	router := setupLedgerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if entries := int(resp["entries"].(float64)); entries != 1 {
		t.Errorf("expected 1 entry (genesis), got %d", entries)
	}
	if resp["root"] != ledger.GenesisHash {
		t.Errorf("expected genesis root, got %v", resp["root"])
	}
	if recent := resp["recent"].([]any); len(recent) != 1 {
		t.Errorf("expected 1 recent entry, got %d", len(recent))
	}
}

func TestLedgerOverview_400_badLimit(t *testing.T) {
	router := setupLedgerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger?limit=5000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestLedgerVerify_200(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Errorf("expected valid=true, got %v", resp["valid"])
	}
}

func TestLedgerGetEntry(t *testing.T) {
	router := setupLedgerRouter(t)

	for path, want := range map[string]int{
		"/api/v1/ledger/entries/0":   http.StatusOK,
		"/api/v1/ledger/entries/999": http.StatusNotFound,
		"/api/v1/ledger/entries/-1":  http.StatusBadRequest,
		"/api/v1/ledger/entries/abc": http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: expected %d, got %d", path, want, w.Code)
		}
	}
}
