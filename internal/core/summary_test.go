package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func closedEntry(caregiverID string, in time.Time, hours float64) TimeEntry {
	out := in.Add(time.Duration(hours * float64(time.Hour)))
	e := TimeEntry{CaregiverID: caregiverID, ClockIn: in, ClockOut: &out}
	e.ComputeTotalHours()
	return e
}

func TestWorkedHours(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	entries := []TimeEntry{
		closedEntry("c1", in, 8),
		closedEntry("c1", in.Add(24*time.Hour), 4),
		{CaregiverID: "c1", ClockIn: in.Add(48 * time.Hour)}, // open, contributes zero
	}

	if got := WorkedHours(entries); got != 12.0 {
		t.Errorf("WorkedHours = %v, want 12.0", got)
	}
	if got := WorkedHours(nil); got != 0 {
		t.Errorf("WorkedHours(nil) = %v, want 0", got)
	}
}

func TestRemainingHours(t *testing.T) {
	tests := []struct {
		name         string
		monthlyHours int
		worked       float64
		want         float64
	}{
		{"under quota", 160, 12, 148},
		{"exactly at quota", 160, 160, 0},
		{"overtime clamps to zero", 160, 200, 0},
		{"nothing worked", 160, 0, 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingHours(tt.monthlyHours, tt.worked); got != tt.want {
				t.Errorf("RemainingHours(%d, %v) = %v, want %v", tt.monthlyHours, tt.worked, got, tt.want)
			}
		})
	}
}

func TestTotalPayUnclamped(t *testing.T) {
	rate := decimal.NewFromFloat(25.00)

	// Overtime beyond the quota is still paid.
	pay := TotalPay(rate, 200)
	if !pay.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("TotalPay = %s, want 5000", pay)
	}
}

func TestSummarize(t *testing.T) {
	jan2 := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	caregivers := []Caregiver{
		{ID: "c2", EnglishName: "Zoe Wang", ChineseName: "王若依", MonthlyHours: 120, HourlyRate: decimal.NewFromFloat(30.00), IsActive: true},
		{ID: "c1", EnglishName: "Maria Chen", ChineseName: "陈玛丽亚", MonthlyHours: 160, HourlyRate: decimal.NewFromFloat(25.00), IsActive: true},
	}
	entries := map[string][]TimeEntry{
		"c1": {
			closedEntry("c1", jan2, 8),
			closedEntry("c1", jan2.Add(24*time.Hour), 4),
		},
		// c2 has no entries this month.
	}

	got := Summarize(caregivers, entries)
	if len(got) != 2 {
		t.Fatalf("Summarize returned %d rows, want 2", len(got))
	}

	// Ordered by EnglishName ascending.
	if got[0].CaregiverID != "c1" || got[1].CaregiverID != "c2" {
		t.Fatalf("order = [%s %s], want [c1 c2]", got[0].CaregiverID, got[1].CaregiverID)
	}

	c1 := got[0]
	if c1.WorkedHours != 12.0 {
		t.Errorf("c1 WorkedHours = %v, want 12.0", c1.WorkedHours)
	}
	if c1.RemainingHours != 148.0 {
		t.Errorf("c1 RemainingHours = %v, want 148.0", c1.RemainingHours)
	}
	if !c1.TotalPay.Equal(decimal.NewFromInt(300)) {
		t.Errorf("c1 TotalPay = %s, want 300", c1.TotalPay)
	}

	c2 := got[1]
	if c2.WorkedHours != 0 {
		t.Errorf("c2 WorkedHours = %v, want 0", c2.WorkedHours)
	}
	if c2.RemainingHours != 120 {
		t.Errorf("c2 RemainingHours = %v, want 120", c2.RemainingHours)
	}
	if !c2.TotalPay.Equal(decimal.Zero) {
		t.Errorf("c2 TotalPay = %s, want 0", c2.TotalPay)
	}
}
