package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"caretrack/internal/core"
)

// PostgresStore is the client/server storage engine, for deployments where
// the embedded file database does not fit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) FindCaregiver(ctx context.Context, id string) (core.Caregiver, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers WHERE id = $1`, id)
	c, err := scanPostgresCaregiver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Caregiver{}, core.ErrCaregiverNotFound
	}
	if err != nil {
		return core.Caregiver{}, fmt.Errorf("find caregiver: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListActiveCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.listCaregivers(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers WHERE is_active ORDER BY english_name`)
}

func (s *PostgresStore) ListAllCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.listCaregivers(ctx, `
		SELECT id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at
		FROM caregivers ORDER BY english_name`)
}

func (s *PostgresStore) listCaregivers(ctx context.Context, query string) ([]core.Caregiver, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list caregivers: %w", err)
	}
	defer rows.Close()

	var caregivers []core.Caregiver
	for rows.Next() {
		c, err := scanPostgresCaregiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caregiver: %w", err)
		}
		caregivers = append(caregivers, c)
	}
	return caregivers, rows.Err()
}

func (s *PostgresStore) InsertCaregiver(ctx context.Context, c core.Caregiver) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO caregivers (id, english_name, chinese_name, monthly_hours, hourly_rate, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
		c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert caregiver: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCaregiver(ctx context.Context, c core.Caregiver) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE caregivers
		SET english_name = $1, chinese_name = $2, monthly_hours = $3, hourly_rate = $4, is_active = $5, updated_at = $6
		WHERE id = $7`,
		c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
		c.IsActive, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return fmt.Errorf("update caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *PostgresStore) DeactivateCaregiver(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE caregivers SET is_active = FALSE, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *PostgresStore) DeleteCaregiver(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM caregivers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete caregiver: %w", err)
	}
	return requireRows(res, core.ErrCaregiverNotFound)
}

func (s *PostgresStore) InsertTimeEntry(ctx context.Context, e core.TimeEntry) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO time_entries (caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.CaregiverID, e.ClockIn.UTC(), utcPtr(e.ClockOut), nullFloat(e.TotalHours),
		e.Notes, e.CreatedAt.UTC(), e.UpdatedAt.UTC()).Scan(&id)
	if err != nil {
		if isPostgresOpenEntryConflict(err) {
			return 0, core.ErrAlreadyClockedIn
		}
		return 0, fmt.Errorf("insert time entry: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateTimeEntry(ctx context.Context, e core.TimeEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_entries
		SET clock_in = $1, clock_out = $2, total_hours = $3, notes = $4, updated_at = $5
		WHERE id = $6`,
		e.ClockIn.UTC(), utcPtr(e.ClockOut), nullFloat(e.TotalHours),
		e.Notes, e.UpdatedAt.UTC(), e.ID)
	if err != nil {
		if isPostgresOpenEntryConflict(err) {
			return core.ErrAlreadyClockedIn
		}
		return fmt.Errorf("update time entry: %w", err)
	}
	return requireRows(res, core.ErrEntryNotFound)
}

func (s *PostgresStore) FindTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries WHERE id = $1`, id)
	e, err := scanPostgresEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("find time entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) FindOpenEntry(ctx context.Context, caregiverID string) (core.TimeEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries
		WHERE caregiver_id = $1 AND clock_out IS NULL
		ORDER BY clock_in DESC LIMIT 1`, caregiverID)
	e, err := scanPostgresEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, false, nil
	}
	if err != nil {
		return core.TimeEntry{}, false, fmt.Errorf("find open entry: %w", err)
	}
	return e, true, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, caregiverID string, month core.Month) ([]core.TimeEntry, error) {
	query := `
		SELECT id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at
		FROM time_entries WHERE caregiver_id = $1`
	args := []any{caregiverID}

	if !month.IsZero() {
		query += ` AND clock_in >= $2 AND clock_in < $3`
		args = append(args, month.Start(), month.Next().Start())
	}
	query += ` ORDER BY clock_in DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.TimeEntry
	for rows.Next() {
		e, err := scanPostgresEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListAllEntries(ctx context.Context, month core.Month) ([]EntryWithNames, error) {
	query := `
		SELECT te.id, te.caregiver_id, te.clock_in, te.clock_out, te.total_hours, te.notes,
		       te.created_at, te.updated_at, c.english_name, c.chinese_name
		FROM time_entries te
		JOIN caregivers c ON te.caregiver_id = c.id
		WHERE c.is_active`
	var args []any

	if !month.IsZero() {
		query += ` AND te.clock_in >= $1 AND te.clock_in < $2`
		args = append(args, month.Start(), month.Next().Start())
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
			e                core.TimeEntry
			clockOut         sql.NullTime
			totalHours       sql.NullFloat64
			english, chinese string
		)
		if err := rows.Scan(&e.ID, &e.CaregiverID, &e.ClockIn, &clockOut, &totalHours,
			&e.Notes, &e.CreatedAt, &e.UpdatedAt, &english, &chinese); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		fillPostgresEntry(&e, clockOut, totalHours)
		entries = append(entries, EntryWithNames{TimeEntry: e, EnglishName: english, ChineseName: chinese})
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteTimeEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return requireRows(res, core.ErrEntryNotFound)
}

func (s *PostgresStore) ReplaceAll(ctx context.Context, caregivers []core.Caregiver, entries []core.TimeEntry) error {
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.EnglishName, c.ChineseName, c.MonthlyHours, c.HourlyRate.String(),
			c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("restore caregiver %s: %w", c.ID, err)
		}
	}

	var maxID int64
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO time_entries (id, caregiver_id, clock_in, clock_out, total_hours, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.CaregiverID, e.ClockIn.UTC(), utcPtr(e.ClockOut), nullFloat(e.TotalHours),
			e.Notes, e.CreatedAt.UTC(), e.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("restore time entry %d: %w", e.ID, err)
		}
		if e.ID > maxID {
			maxID = e.ID
		}
	}

	// Keep the sequence ahead of the restored ids.
	if _, err := tx.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('time_entries', 'id'), GREATEST($1::bigint, 1))`, maxID); err != nil {
		return fmt.Errorf("reset entry sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}

func scanPostgresCaregiver(row rowScanner) (core.Caregiver, error) {
	var (
		c    core.Caregiver
		rate string
	)
	if err := row.Scan(&c.ID, &c.EnglishName, &c.ChineseName, &c.MonthlyHours,
		&rate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return core.Caregiver{}, err
	}

	var err error
	if c.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return core.Caregiver{}, fmt.Errorf("parse hourly rate %q: %w", rate, err)
	}
	return c, nil
}

func scanPostgresEntry(row rowScanner) (core.TimeEntry, error) {
	var (
		e          core.TimeEntry
		clockOut   sql.NullTime
		totalHours sql.NullFloat64
	)
	if err := row.Scan(&e.ID, &e.CaregiverID, &e.ClockIn, &clockOut, &totalHours,
		&e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return core.TimeEntry{}, err
	}
	fillPostgresEntry(&e, clockOut, totalHours)
	return e, nil
}

func fillPostgresEntry(e *core.TimeEntry, clockOut sql.NullTime, totalHours sql.NullFloat64) {
	if clockOut.Valid {
		t := clockOut.Time
		e.ClockOut = &t
	}
	if totalHours.Valid {
		h := totalHours.Float64
		e.TotalHours = &h
	}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// isPostgresOpenEntryConflict reports whether an insert or update tripped
// the single-open-entry unique index.
func isPostgresOpenEntryConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "idx_time_entries_open"
	}
	return false
}
