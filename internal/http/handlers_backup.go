package http

import (
	"log/slog"
	"net/http"

	"dailyfocus/internal/storage"
)

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	backup, err := s.repo.ExportAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Backup export failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="dailyfocus-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}

func (s *Server) handleBackupRestore(w http.ResponseWriter, r *http.Request) {
	var backup storage.Backup
	if err := readJSON(r, &backup); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if backup.Version == "" {
		errorJSON(w, http.StatusUnprocessableEntity, "missing backup version")
		return
	}

	if err := s.repo.RestoreAll(r.Context(), backup); err != nil {
		slog.ErrorContext(r.Context(), "Backup restore failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Every user's summary may have changed.
	s.summaryCache.Purge()

	slog.InfoContext(r.Context(), "Backup restored",
		"users", len(backup.Data.Users),
		"transactions", len(backup.Data.Transactions),
		"budgets", len(backup.Data.Budgets))
	writeJSON(w, http.StatusOK, map[string]bool{"restored": true})
}
