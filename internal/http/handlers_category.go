package http

import (
	"net/http"

	"outlay/internal/core"
)

type categoryRequest struct {
	Name          string             `json:"name"`
	Subcategories []core.Subcategory `json:"subcategories"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.GetCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	cat := core.Category{
		Name:          sanitizeInput(req.Name),
		Subcategories: sanitizeSubcategories(req.Subcategories),
	}
	if err := cat.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.store.CreateCategory(r.Context(), cat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	cat := core.Category{
		ID:            r.PathValue("id"),
		Name:          sanitizeInput(req.Name),
		Subcategories: sanitizeSubcategories(req.Subcategories),
	}
	if err := cat.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.store.UpdateCategory(r.Context(), cat)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	w.WriteHeader(http.StatusNoContent)
}

func sanitizeSubcategories(subs []core.Subcategory) []core.Subcategory {
	for i := range subs {
		subs[i].Name = sanitizeInput(subs[i].Name)
	}
	return subs
}
