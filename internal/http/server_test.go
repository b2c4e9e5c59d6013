package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carlinf/finance-tracker/internal/middleware/trace"
	"github.com/carlinf/finance-tracker/internal/store/memory"
)

const testOwner = "owner-1"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(Options{Addr: ":0"}, memory.New(memory.Config{}), nil)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func doRequest(s *Server, method, path, owner string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set(trace.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRawRequest(method, path, owner, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(trace.OwnerHeader, owner)
	}
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz returned %d", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz returned %d", rec.Code)
	}
}

func TestAPIRequiresOwnerHeader(t *testing.T) {
	s := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/analytics"},
		{http.MethodGet, "/api/transactions"},
		{http.MethodPost, "/api/transactions"},
		{http.MethodGet, "/api/settings"},
		{http.MethodDelete, "/api/account"},
	}

	for _, p := range paths {
		rec := doRequest(s, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without owner header returned %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/healthz", "", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got == "" {
		t.Error("expected X-Frame-Options header")
	}
}

func TestRateLimitRejectsExcessRequests(t *testing.T) {
	s := NewServer(Options{Addr: ":0", RequestsPerMinute: 3}, memory.New(memory.Config{}), nil)
	defer s.Shutdown(context.Background())

	var limited bool
	for i := 0; i < 5; i++ {
		rec := doRequest(s, http.MethodGet, "/healthz", "", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if got := rec.Header().Get("Retry-After"); got != "60" {
				t.Errorf("expected Retry-After 60, got %q", got)
			}
		}
	}
	if !limited {
		t.Error("expected at least one request to be rate limited")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/nope", testOwner, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route returned %d, want 404", rec.Code)
	}
}

func TestErrorResponsesCarryRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/dashboard", "", nil)
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if !strings.HasPrefix(resp.RequestID, "req_") {
		t.Errorf("expected a request id, got %q", resp.RequestID)
	}
}
