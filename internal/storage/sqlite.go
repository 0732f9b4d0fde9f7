package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"caretrack/internal/core"
)

// Timestamps are stored as UTC RFC3339 text, which keeps month filtering
// a plain prefix match on the column. Writes pad nanoseconds to full
// width so lexicographic ORDER BY on the column follows time order even
// for entries inside the same second. Reads stay lenient.
const (
	sqliteTimeWriteFormat = "2006-01-02T15:04:05.000000000Z07:00"
	sqliteTimeReadFormat  = time.RFC3339Nano
)

// SQLiteStore is the embedded-file storage engine.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// foreign_keys must be set per connection; the DSN pragma covers every
	// connection the pool opens. Cascading deletes depend on it.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) FindCaregiver(ctx context.Context, id string) (core.Caregiver, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers WHERE id = ?`, id)
	c, err := scanSQLiteCaregiver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Caregiver{}, core.ErrCaregiverNotFound
	}
	if err != nil {
		return core.Caregiver{}, fmt.Errorf("find caregiver: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListActiveCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.listCaregivers(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers WHERE is_active = 1 ORDER BY english_name`)
}

func (s *SQLiteStore) ListAllCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.listCaregivers(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers ORDER BY english_name`)
}

func (s *SQLiteStore) listCaregivers(ctx context.Context, query string) ([]core.Caregiver, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list caregivers: %w", err)
	}
	defer rows.Close()

	var caregivers []core.Caregiver
	for rows.Next() {
		c, err := scanSQLiteCaregiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caregiver: %w", err)
		}
		caregivers = append(caregivers, c)
	}
	return caregivers, rows.Err()
}

func (s *SQLiteStore) InsertCaregiver(ctx context.Context, c core.Caregiver) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO caregivers (id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
		boolToInt(c.IsActive), formatSQLiteTime(c.CreatedAt), formatSQLiteTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert caregiver: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateCaregiver(ctx context.Context, c core.Caregiver) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE caregivers
		SET english_name = ?, chinese_name = ?, monthly_hours = ?, hourly_rate = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
		boolToInt(c.IsActive), formatSQLiteTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *SQLiteStore) DeactivateCaregiver(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE caregivers SET is_active = 0, updated_at = ? WHERE id = ?`,
		formatSQLiteTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("deactivate caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *SQLiteStore) DeleteCaregiver(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM caregivers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *SQLiteStore) InsertTimeEntry(ctx context.Context, e core.TimeEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries (caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.CaregiverID, formatSQLiteTime(e.ClockIn), formatSQLiteTimePtr(e.ClockOut),
		nullFloat(e.TotalHours), e.Notes, formatSQLiteTime(e.CreatedAt), formatSQLiteTime(e.UpdatedAt))
	if err != nil {
		if isSQLiteOpenEntryConflict(err) {
			return 0, core.ErrAlreadyClockedIn
		}
		return 0, fmt.Errorf("insert time entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateTimeEntry(ctx context.Context, e core.TimeEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_entries
		SET clock_in = ?, clock_out = ?, total_hours = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		formatSQLiteTime(e.ClockIn), formatSQLiteTimePtr(e.ClockOut),
		nullFloat(e.TotalHours), e.Notes, formatSQLiteTime(e.UpdatedAt), e.ID)
	if err != nil {
		if isSQLiteOpenEntryConflict(err) {
			return core.ErrAlreadyClockedIn
		}
		return fmt.Errorf("update time entry: %w", err)
	}
	return requireRows(res, core.ErrEntryNotFound)
}

func (s *SQLiteStore) FindTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries WHERE id = ?`, id)
	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("find time entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) FindOpenEntry(ctx context.Context, caregiverID string) (core.TimeEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries
		WHERE caregiver_id = ? AND clock_out IS NULL
		ORDER BY clock_in DESC LIMIT 1`, caregiverID)
	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, false, nil
	}
	if err != nil {
		return core.TimeEntry{}, false, fmt.Errorf("find open entry: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context, caregiverID string, month core.Month) ([]core.TimeEntry, error) {
	query := `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries WHERE caregiver_id = ?`
	args := []any{caregiverID}

	if !month.IsZero() {
		query += ` AND clock_in LIKE ?`
		args = append(args, month.String()+"-%")
	}
	query += ` ORDER BY clock_in DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.TimeEntry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ListAllEntries(ctx context.Context, month core.Month) ([]EntryWithNames, error) {
	query := `
		SELECT te.id, te.caregiver_id, te.clock_in, te.clock_out, te.total_hours, te.notes,
		       te.created_at, te.updated_at, c.english_name, c.chinese_name
		FROM time_entries te
		JOIN caregivers c ON te.caregiver_id = c.id
		WHERE c.is_active = 1`
	var args []any

	if !month.IsZero() {
		query += ` AND te.clock_in LIKE ?`
		args = append(args, month.String()+"-%")
	}
	query += ` ORDER BY te.clock_in DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryWithNames
	for rows.Next() {
		var (
			e                 core.TimeEntry
			clockIn           string
			clockOut          sql.NullString
			totalHours        sql.NullFloat64
			createdAt, updAt  string
			english, chinese  string
		)
		if err := rows.Scan(&e.ID, &e.CaregiverID, &clockIn, &clockOut, &totalHours,
			&e.Notes, &createdAt, &updAt, &english, &chinese); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := fillSQLiteEntryTimes(&e, clockIn, clockOut, totalHours, createdAt, updAt); err != nil {
			return nil, err
		}
		entries = append(entries, EntryWithNames{TimeEntry: e, EnglishName: english, ChineseName: chinese})
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) DeleteTimeEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return requireRows(res, core.ErrEntryNotFound)
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, caregivers []core.Caregiver, entries []core.TimeEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_entries`); err != nil {
		return fmt.Errorf("clear time entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM caregivers`); err != nil {
		return fmt.Errorf("clear caregivers: %w", err)
	}

	for _, c := range caregivers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO caregivers (id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
			boolToInt(c.IsActive), formatSQLiteTime(c.CreatedAt), formatSQLiteTime(c.UpdatedAt)); err != nil {
			return fmt.Errorf("restore caregiver %s: %w", c.ID, err)
		}
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO time_entries (id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CaregiverID, formatSQLiteTime(e.ClockIn), formatSQLiteTimePtr(e.ClockOut),
			nullFloat(e.TotalHours), e.Notes, formatSQLiteTime(e.CreatedAt), formatSQLiteTime(e.UpdatedAt)); err != nil {
			return fmt.Errorf("restore time entry %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	slog.InfoContext(ctx, "Dataset replaced",
		"caregivers", len(caregivers),
		"time_entries", len(entries))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCaregiver(row rowScanner) (core.Caregiver, error) {
	var (
		c                  core.Caregiver
		rate               string
		active             int
		createdAt, updAt   string
	)
	if err := row.Scan(&c.ID, &c.EnglishName, &c.ChineseName, &c.MonthlyHours,
		&rate, &active, &createdAt, &updAt); err != nil {
		return core.Caregiver{}, err
	}

	var err error
	if c.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return core.Caregiver{}, fmt.Errorf("parse hourly rate %q: %w", rate, err)
	}
	c.IsActive = active != 0
	if c.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return core.Caregiver{}, err
	}
	if c.UpdatedAt, err = parseSQLiteTime(updAt); err != nil {
		return core.Caregiver{}, err
	}
	return c, nil
}

func scanSQLiteEntry(row rowScanner) (core.TimeEntry, error) {
	var (
		e                core.TimeEntry
		clockIn          string
		clockOut         sql.NullString
		totalHours       sql.NullFloat64
		createdAt, updAt string
	)
	if err := row.Scan(&e.ID, &e.CaregiverID, &clockIn, &clockOut, &totalHours,
		&e.Notes, &createdAt, &updAt); err != nil {
		return core.TimeEntry{}, err
	}
	if err := fillSQLiteEntryTimes(&e, clockIn, clockOut, totalHours, createdAt, updAt); err != nil {
		return core.TimeEntry{}, err
	}
	return e, nil
}

func fillSQLiteEntryTimes(e *core.TimeEntry, clockIn string, clockOut sql.NullString, totalHours sql.NullFloat64, createdAt, updatedAt string) error {
	var err error
	if e.ClockIn, err = parseSQLiteTime(clockIn); err != nil {
		return err
	}
	if clockOut.Valid {
		t, err := parseSQLiteTime(clockOut.String)
		if err != nil {
			return err
		}
		e.ClockOut = &t
	}
	if totalHours.Valid {
		h := totalHours.Float64
		e.TotalHours = &h
	}
	if e.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return err
	}
	if e.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return err
	}
	return nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeWriteFormat)
}

func formatSQLiteTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatSQLiteTime(*t)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeReadFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRows(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

// isSQLiteOpenEntryConflict reports whether an insert or update tripped the
// single-open-entry unique index.
func isSQLiteOpenEntryConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "idx_time_entries_open")
}
