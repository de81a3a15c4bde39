package http

import (
	"log/slog"
	"net/http"

	"dailyfocus/internal/core"
)

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var (
		groups []core.Group
		err    error
	)
	if userID, ok := queryID(r, "userId"); ok {
		groups, err = s.repo.GroupsByUser(r.Context(), userID)
	} else {
		groups, err = s.repo.ListGroups(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "List groups failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if groups == nil {
		groups = []core.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	group, ok, err := s.repo.GroupByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get group failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in core.Group
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, ok, err := s.repo.UserByID(r.Context(), in.OwnerID); err != nil {
		slog.ErrorContext(r.Context(), "Check group owner failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		errorJSON(w, http.StatusUnprocessableEntity, "unknown owner")
		return
	}

	group, err := s.repo.CreateGroup(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create group failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var in core.Group
	if err := readJSON(r, &in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.ID = id
	if err := in.Validate(); err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	group, ok, err := s.repo.UpdateGroup(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Update group failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.repo.DeleteGroup(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete group failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		UserID int64 `json:"userId"`
	}
	if err := readJSON(r, &in); err != nil || in.UserID < 1 {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, ok, err := s.repo.GroupByID(r.Context(), groupID); err != nil {
		slog.ErrorContext(r.Context(), "Check group failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		errorJSON(w, http.StatusNotFound, "group not found")
		return
	}
	if _, ok, err := s.repo.UserByID(r.Context(), in.UserID); err != nil {
		slog.ErrorContext(r.Context(), "Check member failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		errorJSON(w, http.StatusUnprocessableEntity, "unknown user")
		return
	}

	if err := s.repo.AddGroupMember(r.Context(), groupID, in.UserID); err != nil {
		slog.ErrorContext(r.Context(), "Add group member failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	group, _, err := s.repo.GroupByID(r.Context(), groupID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reload group failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	group, ok, err := s.repo.GroupByID(r.Context(), groupID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Check group failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "group not found")
		return
	}
	if group.OwnerID == userID {
		errorJSON(w, http.StatusUnprocessableEntity, "owner cannot be removed from the group")
		return
	}

	removed, err := s.repo.RemoveGroupMember(r.Context(), groupID, userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Remove group member failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !removed {
		errorJSON(w, http.StatusNotFound, "member not found")
		return
	}

	group, _, err = s.repo.GroupByID(r.Context(), groupID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Reload group failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, group)
}
