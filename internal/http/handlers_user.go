package http

import (
	"errors"
	"net/http"
	"strings"

	"outlay/internal/core"
	"outlay/internal/storage"
)

type signInRequest struct {
	Username string `json:"username"`
}

// handleSignIn resolves a username to a user, creating the account on first
// sign-in. There is no password; identity is a namespace, not a credential.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	username := strings.ToLower(sanitizeInput(req.Username))
	if username == "" {
		writeError(w, r, core.ErrEmptyName)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, storage.ErrNotFound) {
		user, err = s.store.CreateUser(r.Context(), core.User{Username: username})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
