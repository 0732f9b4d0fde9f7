package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input   string
		want    Month
		wantErr bool
	}{
		{"2024-01", Month{2024, time.January}, false},
		{"1999-12", Month{1999, time.December}, false},
		{"2024-13", Month{}, true},
		{"2024-00", Month{}, true},
		{"2024", Month{}, true},
		{"24-01", Month{}, true},
		{"", Month{}, true},
		{"2024-01-02", Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMonth) {
					t.Fatalf("ParseMonth(%q) error = %v, want ErrInvalidMonth", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonth(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMonth(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMonthRoundTrip(t *testing.T) {
	m := Month{2024, time.March}
	if m.String() != "2024-03" {
		t.Fatalf("String() = %q, want 2024-03", m.String())
	}
	back, err := ParseMonth(m.String())
	if err != nil {
		t.Fatalf("ParseMonth error = %v", err)
	}
	if back != m {
		t.Errorf("round trip = %v, want %v", back, m)
	}
}

func TestMonthContains(t *testing.T) {
	m := Month{2024, time.January}

	if !m.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)) {
		t.Error("last minute of January should be contained")
	}
	if m.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("February should not be contained")
	}
	if m.Contains(time.Date(2023, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("same month of a different year should not be contained")
	}
}

func TestMonthNext(t *testing.T) {
	if got := (Month{2024, time.December}).Next(); got != (Month{2025, time.January}) {
		t.Errorf("Next() = %v, want 2025-01", got)
	}
	if got := (Month{2024, time.January}).Next(); got != (Month{2024, time.February}) {
		t.Errorf("Next() = %v, want 2024-02", got)
	}
}
