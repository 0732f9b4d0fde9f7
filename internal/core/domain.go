package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMonthlyHours is the hour allocation assigned to a caregiver when
// none is supplied at creation.
const DefaultMonthlyHours = 160

// DefaultHourlyRate is the pay rate assigned to a caregiver when none is
// supplied at creation.
var DefaultHourlyRate = decimal.NewFromFloat(25.00)

type (
	// Caregiver is a worker profile with a monthly hour quota and pay rate.
	// Deletion is soft: IsActive flips to false and the row is retained so
	// historical time entries stay resolvable.
	Caregiver struct {
		ID           string          `json:"id"`
		EnglishName  string          `json:"englishName"`
		ChineseName  string          `json:"chineseName"`
		MonthlyHours int             `json:"monthlyHours"`
		HourlyRate   decimal.Decimal `json:"hourlyRate"`
		IsActive     bool            `json:"isActive"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    time.Time       `json:"updatedAt"`
	}

	// TimeEntry is one clock-in/clock-out interval belonging to a caregiver.
	// A nil ClockOut marks the entry as open: the caregiver is on shift.
	// TotalHours is derived from the two boundaries and present only when
	// ClockOut is set.
	TimeEntry struct {
		ID          int64      `json:"id"`
		CaregiverID string     `json:"caregiverId"`
		ClockIn     time.Time  `json:"clockIn"`
		ClockOut    *time.Time `json:"clockOut"`
		TotalHours  *float64   `json:"totalHours"`
		Notes       string     `json:"notes"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}
)

var (
	ErrCaregiverNotFound = errors.New("caregiver not found")
	ErrEntryNotFound     = errors.New("time entry not found")
	ErrAlreadyClockedIn  = errors.New("already clocked in")
	ErrNotClockedIn      = errors.New("not clocked in")
	ErrInvalidInterval   = errors.New("clock out must be after clock in")

	ErrEmptyEnglishName    = errors.New("english name is required")
	ErrEmptyChineseName    = errors.New("chinese name is required")
	ErrInvalidMonthlyHours = errors.New("monthly hours must be positive")
	ErrNegativeHourlyRate  = errors.New("hourly rate cannot be negative")
	ErrEmptyCaregiverID    = errors.New("caregiver id is required")
	ErrMissingClockIn      = errors.New("clock in time is required")
)

func (c Caregiver) Validate() error {
	if strings.TrimSpace(c.EnglishName) == "" {
		return ErrEmptyEnglishName
	}
	if strings.TrimSpace(c.ChineseName) == "" {
		return ErrEmptyChineseName
	}
	if c.MonthlyHours <= 0 {
		return ErrInvalidMonthlyHours
	}
	if c.HourlyRate.IsNegative() {
		return ErrNegativeHourlyRate
	}
	return nil
}

func (e TimeEntry) Validate() error {
	if strings.TrimSpace(e.CaregiverID) == "" {
		return ErrEmptyCaregiverID
	}
	if e.ClockIn.IsZero() {
		return ErrMissingClockIn
	}
	if e.ClockOut != nil && !e.ClockOut.After(e.ClockIn) {
		return ErrInvalidInterval
	}
	return nil
}

// Open reports whether the entry has no recorded clock-out.
func (e TimeEntry) Open() bool {
	return e.ClockOut == nil
}

// ComputeTotalHours derives TotalHours from the entry boundaries. Open
// entries get a nil TotalHours. Must be called after any change to either
// boundary.
func (e *TimeEntry) ComputeTotalHours() {
	if e.ClockOut == nil {
		e.TotalHours = nil
		return
	}
	h := HoursBetween(e.ClockIn, *e.ClockOut)
	e.TotalHours = &h
}

// HoursBetween returns the elapsed wall-clock time between two instants in
// fractional hours. No calendar rules apply: no break subtraction, no
// overtime multipliers.
func HoursBetween(in, out time.Time) float64 {
	return out.Sub(in).Hours()
}
