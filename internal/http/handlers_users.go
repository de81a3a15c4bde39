package http

import (
	"log/slog"
	"net/http"
	"strings"

	"dailyfocus/internal/core"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List users failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok, err := s.repo.UserByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get user failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		errorJSON(w, http.StatusBadRequest, "invalid email")
		return
	}
	user, ok, err := s.repo.UserByEmail(r.Context(), email)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get user by email failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in core.User
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, exists, err := s.repo.UserByEmail(r.Context(), in.Email); err != nil {
		slog.ErrorContext(r.Context(), "Check email failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if exists {
		errorJSON(w, http.StatusConflict, "email already registered")
		return
	}

	user, err := s.repo.CreateUser(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create user failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var in core.User
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.ID = id
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Changing email must not collide with another account.
	if existing, ok, err := s.repo.UserByEmail(r.Context(), in.Email); err != nil {
		slog.ErrorContext(r.Context(), "Check email failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if ok && existing.ID != id {
		errorJSON(w, http.StatusConflict, "email already registered")
		return
	}

	user, ok, err := s.repo.UpdateUser(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Update user failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	user, ok, err := s.repo.DeleteUser(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete user failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}
	s.summaryCache.Delete(summaryCacheKey(id))
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, ok, err := s.repo.UserByEmail(r.Context(), strings.TrimSpace(in.Email))
	if err != nil {
		slog.ErrorContext(r.Context(), "Login lookup failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok || user.Password != in.Password {
		errorJSON(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	slog.InfoContext(r.Context(), "Login succeeded", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}
