// Package core holds the caregiver and time-entry domain model together
// with the monthly aggregation rules. It has no storage or transport
// dependencies.
package core

import (
	"errors"
	"fmt"
	"time"
)

// Month identifies one calendar month, the unit every summary and report is
// scoped to. The wire format is "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

var ErrInvalidMonth = errors.New("month must be in YYYY-MM format")

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the calendar month a timestamp falls in.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// CurrentMonth returns the month containing now.
func CurrentMonth() Month {
	return MonthOf(time.Now())
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Contains reports whether the timestamp's year and month match. An entry
// belongs to the month its clock-in falls in, even when the shift crosses
// into the next month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}
