package http

import (
	"net/http"
	"time"

	"caretrack/internal/core"
	"caretrack/internal/storage"
)

// entryRequest is the create/update payload for time entries.
// Timestamps are RFC3339; a missing clockIn on create means "now".
type entryRequest struct {
	CaregiverID string  `json:"caregiverId"`
	ClockIn     string  `json:"clockIn"`
	ClockOut    string  `json:"clockOut"`
	Notes       *string `json:"notes"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := s.tracking.AllEntries(r.Context(), month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []storage.EntryWithNames{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListCaregiverEntries(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	caregiverID := r.PathValue("id")
	if _, err := s.registry.Find(r.Context(), caregiverID); err != nil {
		writeDomainError(w, err)
		return
	}

	entries, err := s.tracking.Entries(r.Context(), caregiverID, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []core.TimeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCurrentEntry(w http.ResponseWriter, r *http.Request) {
	entry, found, err := s.tracking.OpenEntry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleCreateEntry covers both live clock-ins and manual entries: a
// payload with a clockOut records a completed shift, one without opens
// a new entry.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clockIn, err := parseTime(req.ClockIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notes := ""
	if req.Notes != nil {
		notes = sanitizeInput(*req.Notes)
	}

	var entry core.TimeEntry
	if req.ClockOut == "" {
		entry, err = s.tracking.ClockIn(r.Context(), req.CaregiverID, clockIn, notes)
	} else {
		var clockOut time.Time
		clockOut, err = parseTime(req.ClockOut)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if clockIn.IsZero() {
			writeDomainError(w, core.ErrMissingClockIn)
			return
		}
		entry, err = s.tracking.CreateEntry(r.Context(), core.TimeEntry{
			CaregiverID: req.CaregiverID,
			ClockIn:     clockIn,
			ClockOut:    &clockOut,
			Notes:       notes,
		})
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clockOut, err := parseTime(req.ClockOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var notes *string
	if req.Notes != nil {
		sanitized := sanitizeInput(*req.Notes)
		notes = &sanitized
	}

	entry, err := s.tracking.ClockOut(r.Context(), id, clockOut, notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clockIn, err := parseTime(req.ClockIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if clockIn.IsZero() {
		writeDomainError(w, core.ErrMissingClockIn)
		return
	}

	update := core.TimeEntry{ID: id, ClockIn: clockIn}
	if req.ClockOut != "" {
		clockOut, err := parseTime(req.ClockOut)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update.ClockOut = &clockOut
	}
	if req.Notes != nil {
		update.Notes = sanitizeInput(*req.Notes)
	}

	entry, err := s.tracking.UpdateEntry(r.Context(), update)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.tracking.DeleteEntry(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Time entry deleted"})
}
