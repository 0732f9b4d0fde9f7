// Package report renders the printable monthly report: one page per
// month with every active caregiver's summary and shift log, labeled in
// both English and Chinese.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"caretrack/internal/core"
)

//go:embed templates/*.html
var templatesFS embed.FS

// CaregiverSection is one caregiver's block on the report.
type CaregiverSection struct {
	Summary core.Summary
	Entries []EntryRow
}

// EntryRow is a single shift line, pre-formatted for printing.
type EntryRow struct {
	Date       string
	ClockIn    string
	ClockOut   string
	TotalHours string
	Notes      string
}

// Data is everything the report template needs.
type Data struct {
	Month       string
	MonthLabel  string
	GeneratedAt string
	Sections    []CaregiverSection
}

// Renderer renders monthly reports.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse report templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Build assembles the template data for a month from summaries and each
// caregiver's entries. Entries are shown oldest first, the reading
// order of a paper timesheet.
func Build(month core.Month, summaries []core.Summary, entriesByCaregiver map[string][]core.TimeEntry, now time.Time) Data {
	data := Data{
		Month:       month.String(),
		MonthLabel:  fmt.Sprintf("%s %d", month.Month.String(), month.Year),
		GeneratedAt: now.UTC().Format("2006-01-02 15:04 MST"),
	}

	for _, summary := range summaries {
		section := CaregiverSection{Summary: summary}
		entries := entriesByCaregiver[summary.CaregiverID]
		for i := len(entries) - 1; i >= 0; i-- {
			section.Entries = append(section.Entries, formatEntry(entries[i]))
		}
		data.Sections = append(data.Sections, section)
	}

	return data
}

func formatEntry(e core.TimeEntry) EntryRow {
	row := EntryRow{
		Date:       e.ClockIn.UTC().Format("2006-01-02"),
		ClockIn:    e.ClockIn.UTC().Format("15:04"),
		ClockOut:   "In Progress / 进行中",
		TotalHours: "-",
		Notes:      "-",
	}
	if e.ClockOut != nil {
		row.ClockOut = e.ClockOut.UTC().Format("15:04")
	}
	if e.TotalHours != nil {
		row.TotalHours = fmt.Sprintf("%.2f", *e.TotalHours)
	}
	if e.Notes != "" {
		row.Notes = e.Notes
	}
	return row
}

// Render writes the printable HTML report.
func (r *Renderer) Render(w io.Writer, data Data) error {
	if err := r.tmpl.ExecuteTemplate(w, "report.html", data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
