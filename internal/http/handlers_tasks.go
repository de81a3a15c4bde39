package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"dailyfocus/internal/core"
)

func queryID(r *http.Request, name string) (int64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []core.Task
		err   error
	)
	if userID, ok := queryID(r, "userId"); ok {
		tasks, err = s.repo.TasksByUser(r.Context(), userID)
	} else if groupID, ok := queryID(r, "groupId"); ok {
		tasks, err = s.repo.TasksByGroup(r.Context(), groupID)
	} else {
		tasks, err = s.repo.ListTasks(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "List tasks failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tasks == nil {
		tasks = []core.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	task, ok, err := s.repo.TaskByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get task failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in core.Task
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, ok, err := s.repo.UserByID(r.Context(), in.UserID); err != nil {
		slog.ErrorContext(r.Context(), "Check task owner failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		errorJSON(w, http.StatusUnprocessableEntity, "unknown user")
		return
	}

	task, err := s.repo.CreateTask(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create task failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var in core.Task
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.ID = id
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	task, ok, err := s.repo.UpdateTask(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Update task failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.repo.DeleteTask(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete task failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
