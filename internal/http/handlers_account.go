package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/services"
)

type settingsRequest struct {
	Currency           *string `json:"currency"`
	EmailNotifications *bool   `json:"emailNotifications"`
}

type settingsResponse struct {
	Currency           string `json:"currency"`
	CurrencySymbol     string `json:"currencySymbol"`
	EmailNotifications bool   `json:"emailNotifications"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

func toSettingsResponse(p core.UserProfile) settingsResponse {
	resp := settingsResponse{
		Currency:           string(p.Currency),
		CurrencySymbol:     p.Currency.Symbol(),
		EmailNotifications: p.EmailNotifications,
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	profile := s.profiles.Resolve(r.Context(), ownerID(r))
	writeJSON(w, http.StatusOK, toSettingsResponse(profile))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner := ownerID(r)
	profile, err := s.profiles.UpdateSettings(r.Context(), owner, services.SettingsInput{
		Currency:           req.Currency,
		EmailNotifications: req.EmailNotifications,
	})
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	// Currency changes reformat every cached amount.
	s.invalidateOwner(owner)
	writeJSON(w, http.StatusOK, toSettingsResponse(profile))
}

// handleDeleteAccount purges all owner data. Partial failures report which
// collections could not be purged; the rest are already gone.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	if err := s.purge.PurgeOwner(r.Context(), owner); err != nil {
		s.logger.ErrorContext(r.Context(), "Account purge incomplete",
			log.FieldError, err,
			log.FieldOwnerID, owner)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "account deletion incomplete",
			Details: splitJoined(err),
		})
		return
	}

	s.invalidateOwner(owner)
	w.WriteHeader(http.StatusNoContent)
}

// splitJoined flattens an errors.Join result into individual messages.
func splitJoined(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return strings.Split(err.Error(), "\n")
}
