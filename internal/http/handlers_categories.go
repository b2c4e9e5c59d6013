package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/services"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Color     string `json:"color"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Color:     c.Color,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func categoryInput(req categoryRequest) services.CategoryInput {
	return services.CategoryInput{
		Name:  sanitizeInput(req.Name),
		Type:  sanitizeInput(req.Type),
		Color: sanitizeInput(req.Color),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimSpace(r.URL.Query().Get("type"))

	cats, err := s.categories.List(r.Context(), ownerID(r), typ)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCategoryNames returns the category names applicable to a type,
// falling back to the built-in defaults when the owner has none.
func (s *Server) handleCategoryNames(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimSpace(r.URL.Query().Get("type"))

	names, err := s.categories.Names(r.Context(), ownerID(r), typ)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cat, err := s.categories.Create(r.Context(), ownerID(r), categoryInput(req))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(cat))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cat, err := s.categories.Update(r.Context(), ownerID(r), r.PathValue("id"), categoryInput(req))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(cat))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
