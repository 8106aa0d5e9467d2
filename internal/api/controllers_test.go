package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"oddsarb.dev/core/internal/engine"
	"oddsarb.dev/core/internal/events"
	"oddsarb.dev/core/internal/orders"
	"oddsarb.dev/core/internal/risk"
	"oddsarb.dev/core/pkg/db"
	"oddsarb.dev/core/pkg/metrics"
)

type fakeBalance struct{}

func (fakeBalance) Balance() float64 { return 1000 }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	bus := events.NewBus()
	mgr := orders.New(bus, nil, nil, nil, nil)
	drawdown := risk.NewDrawdownMonitor(fakeBalance{}, mgr)
	exposure := risk.NewExposureTracker()
	ks := risk.NewKillSwitch(risk.DefaultConfig(), mgr, drawdown, exposure, bus)

	eng := engine.New(engine.Config{}, engine.Dependencies{Orders: mgr, KillSwitch: ks})
	reg := metrics.NewRegistry()

	return NewServer(bus, database, eng, reg, "test-jwt-secret", "test-operator-secret")
}

func authedRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	token := loginForToken(t, s)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func loginForToken(t *testing.T, s *Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"secret": "test-operator-secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestLoginRejectsWrongSecret(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"secret": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	// The test engine has no venue clients, so health is Unhealthy (503);
	// what matters here is that the route answers without a token.
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetOrdersEmptyWithToken(t *testing.T) {
	s := newTestServer(t)
	rec := authedRequest(t, s, http.MethodGet, "/api/v1/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "null" && rec.Body.String() != "[]" {
		t.Fatalf("expected empty orders list, got %s", rec.Body.String())
	}
}

func TestGetOrdersRejectsUnknownVenue(t *testing.T) {
	s := newTestServer(t)
	rec := authedRequest(t, s, http.MethodGet, "/api/v1/orders?venue=nasdaq", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown venue, got %d", rec.Code)
	}
}

func TestRankingCriteriaRoundTrip(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]float64{"*strategy.MomentumStrategy": 1.5})
	rec := authedRequest(t, s, http.MethodPut, "/api/v1/ranking", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var weights map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &weights); err != nil {
		t.Fatalf("decode ranking response: %v", err)
	}
	if weights["*strategy.MomentumStrategy"] != 1.5 {
		t.Fatalf("expected updated weight to round-trip, got %+v", weights)
	}

	rec = authedRequest(t, s, http.MethodGet, "/api/v1/ranking", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetRiskReflectsKillSwitchState(t *testing.T) {
	s := newTestServer(t)
	rec := authedRequest(t, s, http.MethodGet, "/api/v1/risk", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap engine.RiskSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode risk response: %v", err)
	}
	if snap.Active {
		t.Fatal("expected kill switch to be inactive on a fresh engine")
	}
}
