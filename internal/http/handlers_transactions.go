package http

import (
	"net/http"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/services"
)

type transactionRequest struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	OccurredAt  string  `json:"occurredAt"`
}

type transactionResponse struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	OccurredAt  string  `json:"occurredAt"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: t.Description,
		Type:        t.Kind(),
		OccurredAt:  t.OccurredAt.Format(time.RFC3339),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

func transactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

// parseTransactionRequest converts the wire shape into a service input.
// Dates are accepted as RFC 3339 or plain YYYY-MM-DD.
func parseTransactionRequest(req transactionRequest) (services.TransactionInput, error) {
	occurredAt, err := parseDate(req.OccurredAt)
	if err != nil {
		return services.TransactionInput{}, core.ErrInvalidDate
	}
	return services.TransactionInput{
		Amount:      req.Amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Type:        sanitizeInput(req.Type),
		OccurredAt:  occurredAt,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.loadTransactions(r.Context(), ownerID(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponses(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	input, err := parseTransactionRequest(req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	owner := ownerID(r)
	tx, err := s.transactions.Create(r.Context(), owner, input)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	s.invalidateOwner(owner)
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	input, err := parseTransactionRequest(req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	owner := ownerID(r)
	tx, err := s.transactions.Update(r.Context(), owner, r.PathValue("id"), input)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	s.invalidateOwner(owner)
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if err := s.transactions.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	s.invalidateOwner(owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	txs, err := s.loadTransactions(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	filename := services.ExportFilename(time.Now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if err := services.WriteTransactionsCSV(w, txs); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed",
			log.FieldError, err,
			log.FieldOwnerID, owner)
	}
}
