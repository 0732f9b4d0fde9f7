package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"caretrack/internal/backup"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := backup.Export(r.Context(), s.store)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data, err := snap.Encode()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	filename := fmt.Sprintf("caretrack-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	snap, err := backup.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := snap.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := backup.Restore(r.Context(), s.store, snap); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Backup restored",
		"totalCaregivers":  len(snap.Caregivers),
		"totalTimeEntries": len(snap.TimeEntries),
	})
}
