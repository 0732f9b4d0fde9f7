package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caretrack/internal/core"
)

// maxBodyBytes caps request bodies; import snapshots are the largest
// legitimate payload.
const maxBodyBytes = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrCaregiverNotFound):
		writeError(w, http.StatusNotFound, "Caregiver not found")
	case errors.Is(err, core.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "Time entry not found")
	case errors.Is(err, core.ErrAlreadyClockedIn):
		writeError(w, http.StatusConflict, "Caregiver is already clocked in")
	case errors.Is(err, core.ErrNotClockedIn):
		writeError(w, http.StatusConflict, "Time entry is already clocked out")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func isValidationError(err error) bool {
	for _, validation := range []error{
		core.ErrInvalidInterval,
		core.ErrEmptyEnglishName,
		core.ErrEmptyChineseName,
		core.ErrInvalidMonthlyHours,
		core.ErrNegativeHourlyRate,
		core.ErrEmptyCaregiverID,
		core.ErrMissingClockIn,
		core.ErrInvalidMonth,
	} {
		if errors.Is(err, validation) {
			return true
		}
	}
	return false
}

// decodeJSON reads and decodes a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// parseMonthParam reads an optional month query parameter. A missing
// value yields the zero Month, meaning no filter.
func parseMonthParam(r *http.Request) (core.Month, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.Month{}, nil
	}
	return core.ParseMonth(v)
}

// parseEntryID reads the numeric path value for a time entry.
func parseEntryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id", core.ErrEntryNotFound)
	}
	return id, nil
}

// parseTime accepts RFC3339 timestamps, the format the UI sends.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC3339", s)
	}
	return t, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
