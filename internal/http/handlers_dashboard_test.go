package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDashboardEmptyOwner(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/dashboard", testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard returned %d", rec.Code)
	}
	var resp dashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if resp.Balance != 0 {
		t.Errorf("expected zero balance, got %v", resp.Balance)
	}
	if len(resp.Series) != 1 || resp.Series[0].Label != "Today" {
		t.Errorf("empty series must still carry the closing point, got %+v", resp.Series)
	}
	if resp.Currency != "USD" {
		t.Errorf("expected default currency USD, got %s", resp.Currency)
	}
}

func TestDashboardReflectsTransactions(t *testing.T) {
	s := newTestServer(t)

	now := time.Now()
	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 5000, Description: "salary", Type: "income", OccurredAt: now.Format("2006-01-02"),
	})
	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 120.50, Category: "Food", Description: "groceries", Type: "expense", OccurredAt: now.Format("2006-01-02"),
	})

	rec := doRequest(s, http.MethodGet, "/api/dashboard", testOwner, nil)
	var resp dashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}

	if resp.Balance != 4879.50 {
		t.Errorf("expected balance 4879.50, got %v", resp.Balance)
	}
	if resp.BalanceFormatted != "$4,879.50" {
		t.Errorf("expected formatted balance $4,879.50, got %s", resp.BalanceFormatted)
	}
	if resp.MonthIncome != 5000 || resp.MonthExpense != 120.50 {
		t.Errorf("unexpected month totals: income=%v expense=%v", resp.MonthIncome, resp.MonthExpense)
	}
	if len(resp.Recent) != 2 {
		t.Errorf("expected 2 recent transactions, got %d", len(resp.Recent))
	}
}

func TestAnalyticsWindows(t *testing.T) {
	s := newTestServer(t)

	now := time.Now()
	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 200, Category: "Rent", Description: "rent", Type: "expense", OccurredAt: now.Format("2006-01-02"),
	})

	rec := doRequest(s, http.MethodGet, "/api/analytics", testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics returned %d", rec.Code)
	}
	var resp analyticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if resp.Window != "year" {
		t.Errorf("expected default window year, got %s", resp.Window)
	}
	if len(resp.Months) != int(now.Month()) {
		t.Errorf("calendar-year window should have %d months, got %d", int(now.Month()), len(resp.Months))
	}
	if resp.Summary.TopCategory.Name != "Rent" {
		t.Errorf("expected top category Rent, got %s", resp.Summary.TopCategory.Name)
	}

	rec = doRequest(s, http.MethodGet, "/api/analytics?window=trailing&months=3", testOwner, nil)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode trailing analytics: %v", err)
	}
	if resp.Window != "trailing" {
		t.Errorf("expected trailing window, got %s", resp.Window)
	}
	if len(resp.Months) != 3 {
		t.Errorf("trailing window of 3 months got %d buckets", len(resp.Months))
	}
}

func TestAnalyticsRejectsBadWindow(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/analytics?window=decade", testOwner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad window returned %d, want 400", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/analytics?window=trailing&months=0", testOwner, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad months returned %d, want 400", rec.Code)
	}
}

func TestAnalyticsTopCategorySentinelNotFormatted(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/analytics", testOwner, nil)
	var resp analyticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if resp.Summary.TopCategory.Name != "N/A" {
		t.Errorf("expected sentinel top category, got %s", resp.Summary.TopCategory.Name)
	}
	if resp.Summary.TopCategoryFormatted != "N/A" {
		t.Errorf("sentinel must not be rendered as currency, got %s", resp.Summary.TopCategoryFormatted)
	}
}

func TestDashboardCacheInvalidatedByWrites(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/dashboard", testOwner, nil)
	var before dashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&before); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}

	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 100, Description: "salary", Type: "income", OccurredAt: time.Now().Format("2006-01-02"),
	})

	rec = doRequest(s, http.MethodGet, "/api/dashboard", testOwner, nil)
	var after dashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if after.Balance != before.Balance+100 {
		t.Errorf("write did not invalidate the cached dashboard: before=%v after=%v", before.Balance, after.Balance)
	}
}

func TestStreamDeliversDashboardEvents(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Server.Handler)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Owner-ID", testOwner)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	// The subscription delivers the current snapshot immediately, so the
	// first event arrives without any write happening.
	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if event != "dashboard" {
		t.Errorf("expected dashboard event, got %q", event)
	}

	var payload dashboardResponse
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("event payload is not a dashboard: %v", err)
	}
	if len(payload.Series) == 0 {
		t.Error("dashboard payload missing balance series")
	}
}
