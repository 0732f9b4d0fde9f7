package http

import (
	"net/http"
	"time"

	"caretrack/internal/core"
	"caretrack/internal/report"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows, err := s.cachedSummary(r.Context(), month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []core.Summary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":      month.String(),
		"caregivers": rows,
	})
}

// handleReport renders the printable monthly report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(r.PathValue("month"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows, err := s.cachedSummary(r.Context(), month)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entriesByCaregiver := make(map[string][]core.TimeEntry, len(rows))
	for _, row := range rows {
		entries, err := s.tracking.Entries(r.Context(), row.CaregiverID, month)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		entriesByCaregiver[row.CaregiverID] = entries
	}

	data := report.Build(month, rows, entriesByCaregiver, time.Now())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.reports.Render(w, data); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report")
	}
}
