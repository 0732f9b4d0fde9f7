package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"caretrack/internal/core"
)

// caregiverRequest is the create/update payload. hourlyRate accepts a
// JSON number or string.
type caregiverRequest struct {
	ID           string          `json:"id"`
	EnglishName  string          `json:"englishName"`
	ChineseName  string          `json:"chineseName"`
	MonthlyHours int             `json:"monthlyHours"`
	HourlyRate   decimal.Decimal `json:"hourlyRate"`
}

func (s *Server) handleListCaregivers(w http.ResponseWriter, r *http.Request) {
	caregivers, err := s.registry.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if caregivers == nil {
		caregivers = []core.Caregiver{}
	}
	writeJSON(w, http.StatusOK, caregivers)
}

func (s *Server) handleCreateCaregiver(w http.ResponseWriter, r *http.Request) {
	var req caregiverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.registry.Create(r.Context(), core.Caregiver{
		ID:           sanitizeInput(req.ID),
		EnglishName:  sanitizeInput(req.EnglishName),
		ChineseName:  sanitizeInput(req.ChineseName),
		MonthlyHours: req.MonthlyHours,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCaregiver(w http.ResponseWriter, r *http.Request) {
	caregiver, err := s.registry.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, caregiver)
}

func (s *Server) handleUpdateCaregiver(w http.ResponseWriter, r *http.Request) {
	var req caregiverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.registry.Update(r.Context(), core.Caregiver{
		ID:           r.PathValue("id"),
		EnglishName:  sanitizeInput(req.EnglishName),
		ChineseName:  sanitizeInput(req.ChineseName),
		MonthlyHours: req.MonthlyHours,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCaregiver(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateSummaries()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Caregiver deactivated"})
}
