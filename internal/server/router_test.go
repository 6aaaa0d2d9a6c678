package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"platecost/internal/metrics"
)

func TestNewRouterRegistersHealthRoute(t *testing.T) {
	router := newRouter(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected /healthz to return 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json content type, got %q", ct)
	}
	if _, err := uuid.Parse(rr.Header().Get(requestIDHeader)); err != nil {
		t.Fatalf("expected generated request id, got %q", rr.Header().Get(requestIDHeader))
	}
}

func TestRouterKeepsInboundRequestID(t *testing.T) {
	router := newRouter(nil)
	id := uuid.NewString()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != id {
		t.Fatalf("expected request id %q, got %q", id, got)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "not a uuid\n")
	router.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got == "" || strings.Contains(got, "not a uuid") {
		t.Fatalf("expected malformed request id to be replaced, got %q", got)
	}
}

func TestRouterProtectsResources(t *testing.T) {
	router := newRouter(nil)
	for _, path := range []string{"/api/v1/ingredients", "/api/v1/recipes/1", "/api/v1/bom", "/api/v1/users/me"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		// Without a database the auth middleware refuses before any handler runs.
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503 without database, got %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/units", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected public units route, got %d", rr.Code)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	recorder := metrics.New()
	router := newRouter(recorder)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `platecost_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected healthz latency sample, got:\n%s", body)
	}

	rr = httptest.NewRecorder()
	newRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to be absent without a recorder, got %d", rr.Code)
	}
}
