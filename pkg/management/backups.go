package management

import (
	"net/http"

	"github.com/samber/lo"

	"keyrelay-hq/keyrelay/pkg/backup"
)

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Backups.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Backups: lo.Map(list, func(i backup.Info, _ int) BackupInfo {
		return toBackupInfo(i)
	})})
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Backups.Backup()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBackupInfo(info))
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if err := s.deps.Backups.Restore(filename); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "settings restored", "filename", filename)
	writeJSON(w, http.StatusOK, map[string]string{"restored": filename})
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Backups.Delete(r.PathValue("filename")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
