package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func createTransaction(t *testing.T, s *Server, owner string, body transactionRequest) transactionResponse {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/api/transactions", owner, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func TestCreateTransactionStoresSignedAmount(t *testing.T) {
	s := newTestServer(t)

	resp := createTransaction(t, s, testOwner, transactionRequest{
		Amount:      42.50,
		Category:    "Food",
		Description: "groceries",
		Type:        "expense",
		OccurredAt:  "2025-03-10",
	})

	if resp.ID == "" {
		t.Error("expected a transaction id")
	}
	if resp.Amount != -42.50 {
		t.Errorf("expected stored amount -42.50, got %v", resp.Amount)
	}
	if resp.Type != "expense" {
		t.Errorf("expected type expense, got %s", resp.Type)
	}
}

func TestCreateTransactionRejectsInvalidInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body transactionRequest
		want int
	}{
		{
			name: "missing description",
			body: transactionRequest{Amount: 10, Type: "expense", OccurredAt: "2025-03-10"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "zero amount",
			body: transactionRequest{Amount: 0, Description: "x", Type: "expense", OccurredAt: "2025-03-10"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "negative amount",
			body: transactionRequest{Amount: -5, Description: "x", Type: "expense", OccurredAt: "2025-03-10"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown type",
			body: transactionRequest{Amount: 5, Description: "x", Type: "transfer", OccurredAt: "2025-03-10"},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unparseable date",
			body: transactionRequest{Amount: 5, Description: "x", Type: "expense", OccurredAt: "next tuesday"},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/transactions", testOwner, tt.body)
			if rec.Code != tt.want {
				t.Errorf("returned %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := doRequest(s, http.MethodGet, "/api/transactions", testOwner, nil)
	var listed []transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("rejected inputs must not be written, found %d transactions", len(listed))
	}
}

func TestCreateTransactionRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	req := newRawRequest(http.MethodPost, "/api/transactions", testOwner, `{"amount": `)
	rec := serve(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON returned %d, want 400", rec.Code)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	s := newTestServer(t)

	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 10, Description: "older", Type: "expense", OccurredAt: "2025-01-05",
	})
	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 20, Description: "newer", Type: "income", OccurredAt: "2025-04-05",
	})

	rec := doRequest(s, http.MethodGet, "/api/transactions", testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	var listed []transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(listed))
	}
	if listed[0].Description != "newer" || listed[1].Description != "older" {
		t.Errorf("expected newest first, got %s then %s", listed[0].Description, listed[1].Description)
	}
}

func TestTransactionsAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)

	mine := createTransaction(t, s, testOwner, transactionRequest{
		Amount: 10, Description: "mine", Type: "expense", OccurredAt: "2025-03-10",
	})

	rec := doRequest(s, http.MethodGet, "/api/transactions", "owner-2", nil)
	var listed []transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("another owner sees %d foreign transactions", len(listed))
	}

	rec = doRequest(s, http.MethodDelete, "/api/transactions/"+mine.ID, "owner-2", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete returned %d, want 404", rec.Code)
	}
}

func TestUpdateTransaction(t *testing.T) {
	s := newTestServer(t)

	created := createTransaction(t, s, testOwner, transactionRequest{
		Amount: 10, Description: "lunch", Type: "expense", OccurredAt: "2025-03-10",
	})

	rec := doRequest(s, http.MethodPut, "/api/transactions/"+created.ID, testOwner, transactionRequest{
		Amount: 15, Description: "dinner", Type: "expense", OccurredAt: "2025-03-10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}
	var updated transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if updated.Description != "dinner" || updated.Amount != -15 {
		t.Errorf("unexpected updated transaction: %+v", updated)
	}
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t)

	created := createTransaction(t, s, testOwner, transactionRequest{
		Amount: 10, Description: "lunch", Type: "expense", OccurredAt: "2025-03-10",
	})

	rec := doRequest(s, http.MethodDelete, "/api/transactions/"+created.ID, testOwner, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete returned %d", rec.Code)
	}

	rec = doRequest(s, http.MethodDelete, "/api/transactions/"+created.ID, testOwner, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete returned %d, want 404", rec.Code)
	}
}

func TestExportTransactionsCSV(t *testing.T) {
	s := newTestServer(t)

	createTransaction(t, s, testOwner, transactionRequest{
		Amount: 89.32, Category: "Food", Description: "groceries", Type: "expense", OccurredAt: "2025-03-02",
	})

	rec := doRequest(s, http.MethodGet, "/api/transactions/export", testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export returned %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions-") {
		t.Errorf("unexpected content disposition %q", cd)
	}

	body := rec.Body.Bytes()
	if !bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("export must start with a UTF-8 BOM")
	}
	if !strings.Contains(string(body), "2025-03-02,groceries,Food,expense,-89.32") {
		t.Errorf("unexpected export body: %s", body)
	}
}
