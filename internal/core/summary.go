package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary is one caregiver's aggregated figures for a calendar month.
type Summary struct {
	CaregiverID    string          `json:"id"`
	EnglishName    string          `json:"englishName"`
	ChineseName    string          `json:"chineseName"`
	MonthlyHours   int             `json:"monthlyHours"`
	HourlyRate     decimal.Decimal `json:"hourlyRate"`
	WorkedHours    float64         `json:"workedHours"`
	RemainingHours float64         `json:"remainingHours"`
	TotalPay       decimal.Decimal `json:"totalPay"`
}

// WorkedHours sums TotalHours over the given entries. Open entries carry no
// TotalHours and contribute zero. Callers are expected to pass entries
// already filtered to one caregiver and one month.
func WorkedHours(entries []TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		if e.TotalHours != nil {
			total += *e.TotalHours
		}
	}
	return total
}

// RemainingHours returns the unclaimed part of the monthly quota, clamped at
// zero. Overtime shrinks the figure to zero, never below; the worked figure
// itself stays unclamped.
func RemainingHours(monthlyHours int, worked float64) float64 {
	remaining := float64(monthlyHours) - worked
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TotalPay returns worked hours times the hourly rate. Hours beyond the
// monthly quota are paid at the same rate.
func TotalPay(rate decimal.Decimal, worked float64) decimal.Decimal {
	return rate.Mul(decimal.NewFromFloat(worked))
}

// Summarize builds one Summary row per caregiver from that caregiver's
// month entries. Caregivers without entries appear with zero worked hours.
// Rows are ordered by EnglishName ascending.
func Summarize(caregivers []Caregiver, entriesByCaregiver map[string][]TimeEntry) []Summary {
	summaries := make([]Summary, 0, len(caregivers))
	for _, c := range caregivers {
		worked := WorkedHours(entriesByCaregiver[c.ID])
		summaries = append(summaries, Summary{
			CaregiverID:    c.ID,
			EnglishName:    c.EnglishName,
			ChineseName:    c.ChineseName,
			MonthlyHours:   c.MonthlyHours,
			HourlyRate:     c.HourlyRate,
			WorkedHours:    worked,
			RemainingHours: RemainingHours(c.MonthlyHours, worked),
			TotalPay:       TotalPay(c.HourlyRate, worked),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EnglishName < summaries[j].EnglishName
	})
	return summaries
}
