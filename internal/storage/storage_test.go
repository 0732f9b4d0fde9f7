package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"caretrack/internal/core"
)

// testStores returns one store per engine that can run without external
// services. The Postgres engine shares its SQL shape with these and is
// covered by a live database in deployment.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "caretrack.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func testCaregiver(id, english string) core.Caregiver {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Caregiver{
		ID:           id,
		EnglishName:  english,
		ChineseName:  "护工" + id,
		MonthlyHours: 160,
		HourlyRate:   decimal.NewFromFloat(25.00),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testEntry(caregiverID string, clockIn time.Time, clockOut *time.Time) core.TimeEntry {
	e := core.TimeEntry{
		CaregiverID: caregiverID,
		ClockIn:     clockIn,
		ClockOut:    clockOut,
		CreatedAt:   clockIn,
		UpdatedAt:   clockIn,
	}
	e.ComputeTotalHours()
	return e
}

func TestCaregiverLifecycle(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}
			if err := store.InsertCaregiver(ctx, testCaregiver("c2", "Alice Wu")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			active, err := store.ListActiveCaregivers(ctx)
			if err != nil {
				t.Fatalf("ListActiveCaregivers: %v", err)
			}
			if len(active) != 2 {
				t.Fatalf("active caregivers = %d, want 2", len(active))
			}
			if active[0].EnglishName != "Alice Wu" || active[1].EnglishName != "Maria Chen" {
				t.Errorf("order = [%s %s], want english name ascending", active[0].EnglishName, active[1].EnglishName)
			}

			// Soft delete hides from the active list but keeps the row.
			if err := store.DeactivateCaregiver(ctx, "c2"); err != nil {
				t.Fatalf("DeactivateCaregiver: %v", err)
			}
			active, err = store.ListActiveCaregivers(ctx)
			if err != nil {
				t.Fatalf("ListActiveCaregivers: %v", err)
			}
			if len(active) != 1 || active[0].ID != "c1" {
				t.Fatalf("active after soft delete = %+v, want just c1", active)
			}

			gone, err := store.FindCaregiver(ctx, "c2")
			if err != nil {
				t.Fatalf("FindCaregiver soft-deleted: %v", err)
			}
			if gone.IsActive {
				t.Error("soft-deleted caregiver should be inactive")
			}

			all, err := store.ListAllCaregivers(ctx)
			if err != nil {
				t.Fatalf("ListAllCaregivers: %v", err)
			}
			if len(all) != 2 {
				t.Errorf("ListAllCaregivers = %d rows, want 2", len(all))
			}

			if _, err := store.FindCaregiver(ctx, "nope"); !errors.Is(err, core.ErrCaregiverNotFound) {
				t.Errorf("FindCaregiver(nope) = %v, want ErrCaregiverNotFound", err)
			}
			if err := store.UpdateCaregiver(ctx, testCaregiver("nope", "X")); !errors.Is(err, core.ErrCaregiverNotFound) {
				t.Errorf("UpdateCaregiver(nope) = %v, want ErrCaregiverNotFound", err)
			}
		})
	}
}

func TestCaregiverUpdateRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c := testCaregiver("c1", "Maria Chen")
			if err := store.InsertCaregiver(ctx, c); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			c.MonthlyHours = 120
			c.HourlyRate = decimal.NewFromFloat(27.50)
			c.UpdatedAt = c.UpdatedAt.Add(time.Hour)
			if err := store.UpdateCaregiver(ctx, c); err != nil {
				t.Fatalf("UpdateCaregiver: %v", err)
			}

			got, err := store.FindCaregiver(ctx, "c1")
			if err != nil {
				t.Fatalf("FindCaregiver: %v", err)
			}
			if got.MonthlyHours != 120 {
				t.Errorf("MonthlyHours = %d, want 120", got.MonthlyHours)
			}
			if !got.HourlyRate.Equal(decimal.NewFromFloat(27.50)) {
				t.Errorf("HourlyRate = %s, want 27.5", got.HourlyRate)
			}
		})
	}
}

func TestTimeEntryLifecycle(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			id, err := store.InsertTimeEntry(ctx, testEntry("c1", in, nil))
			if err != nil {
				t.Fatalf("InsertTimeEntry: %v", err)
			}

			open, found, err := store.FindOpenEntry(ctx, "c1")
			if err != nil || !found {
				t.Fatalf("FindOpenEntry = (%v, %v), want open entry", found, err)
			}
			if open.ID != id || !open.ClockIn.Equal(in) {
				t.Errorf("open entry = %+v, want id %d at %v", open, id, in)
			}

			// Clock out.
			open.ClockOut = &out
			open.ComputeTotalHours()
			open.UpdatedAt = out
			if err := store.UpdateTimeEntry(ctx, open); err != nil {
				t.Fatalf("UpdateTimeEntry: %v", err)
			}

			got, err := store.FindTimeEntry(ctx, id)
			if err != nil {
				t.Fatalf("FindTimeEntry: %v", err)
			}
			if got.TotalHours == nil || *got.TotalHours != 8.0 {
				t.Errorf("TotalHours = %v, want 8.0", got.TotalHours)
			}
			if got.ClockOut == nil || !got.ClockOut.Equal(out) {
				t.Errorf("ClockOut = %v, want %v", got.ClockOut, out)
			}

			if _, _, err := store.FindOpenEntry(ctx, "c1"); err != nil {
				t.Fatalf("FindOpenEntry: %v", err)
			}
			_, found, _ = store.FindOpenEntry(ctx, "c1")
			if found {
				t.Error("no open entry should remain after clock out")
			}

			if err := store.DeleteTimeEntry(ctx, id); err != nil {
				t.Fatalf("DeleteTimeEntry: %v", err)
			}
			if _, err := store.FindTimeEntry(ctx, id); !errors.Is(err, core.ErrEntryNotFound) {
				t.Errorf("FindTimeEntry after delete = %v, want ErrEntryNotFound", err)
			}
		})
	}
}

func TestOpenEntryUniqueness(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			if _, err := store.InsertTimeEntry(ctx, testEntry("c1", in, nil)); err != nil {
				t.Fatalf("first open entry: %v", err)
			}
			if _, err := store.InsertTimeEntry(ctx, testEntry("c1", in.Add(time.Hour), nil)); !errors.Is(err, core.ErrAlreadyClockedIn) {
				t.Errorf("second open entry = %v, want ErrAlreadyClockedIn", err)
			}
		})
	}
}

func TestListEntriesSubSecondOrdering(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			// Two shifts starting inside the same second, one on the
			// whole second and one half a second later.
			whole := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
			half := whole.Add(500 * time.Millisecond)
			for _, in := range []time.Time{whole, half} {
				out := in.Add(time.Hour)
				if _, err := store.InsertTimeEntry(ctx, testEntry("c1", in, &out)); err != nil {
					t.Fatalf("InsertTimeEntry: %v", err)
				}
			}

			entries, err := store.ListEntries(ctx, "c1", core.Month{})
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("entries = %d, want 2", len(entries))
			}
			if !entries[0].ClockIn.Equal(half) || !entries[1].ClockIn.Equal(whole) {
				t.Errorf("order = [%v %v], want newest first down to sub-second precision",
					entries[0].ClockIn, entries[1].ClockIn)
			}
		})
	}
}

func TestListEntriesMonthFilter(t *testing.T) {
	jan := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	janEnd := time.Date(2024, 1, 31, 22, 0, 0, 0, time.UTC) // crosses into February
	feb := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			for _, in := range []time.Time{jan, janEnd, feb} {
				out := in.Add(8 * time.Hour)
				if _, err := store.InsertTimeEntry(ctx, testEntry("c1", in, &out)); err != nil {
					t.Fatalf("InsertTimeEntry: %v", err)
				}
			}

			month := core.Month{Year: 2024, Month: time.January}
			entries, err := store.ListEntries(ctx, "c1", month)
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			// The Jan 31 22:00 shift ends in February but belongs to January.
			if len(entries) != 2 {
				t.Fatalf("January entries = %d, want 2", len(entries))
			}
			if !entries[0].ClockIn.After(entries[1].ClockIn) {
				t.Error("entries should be ordered newest clock-in first")
			}

			all, err := store.ListEntries(ctx, "c1", core.Month{})
			if err != nil {
				t.Fatalf("ListEntries all: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("all entries = %d, want 3", len(all))
			}
		})
	}
}

func TestListAllEntriesSkipsInactiveCaregivers(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(4 * time.Hour)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}
			if err := store.InsertCaregiver(ctx, testCaregiver("c2", "Alice Wu")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}
			if _, err := store.InsertTimeEntry(ctx, testEntry("c1", in, &out)); err != nil {
				t.Fatalf("InsertTimeEntry: %v", err)
			}
			entryID, err := store.InsertTimeEntry(ctx, testEntry("c2", in.Add(time.Hour), &out))
			if err != nil {
				t.Fatalf("InsertTimeEntry: %v", err)
			}

			if err := store.DeactivateCaregiver(ctx, "c2"); err != nil {
				t.Fatalf("DeactivateCaregiver: %v", err)
			}

			entries, err := store.ListAllEntries(ctx, core.Month{})
			if err != nil {
				t.Fatalf("ListAllEntries: %v", err)
			}
			if len(entries) != 1 || entries[0].CaregiverID != "c1" {
				t.Fatalf("entries = %+v, want only c1's entry", entries)
			}
			if entries[0].EnglishName != "Maria Chen" {
				t.Errorf("EnglishName = %q, want joined caregiver name", entries[0].EnglishName)
			}

			// The inactive caregiver's entry is still fetchable by id.
			if _, err := store.FindTimeEntry(ctx, entryID); err != nil {
				t.Errorf("FindTimeEntry for inactive caregiver = %v, want nil", err)
			}
		})
	}
}

func TestDeleteCaregiverCascades(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.InsertCaregiver(ctx, testCaregiver("c1", "Maria Chen")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}
			id, err := store.InsertTimeEntry(ctx, testEntry("c1", in, nil))
			if err != nil {
				t.Fatalf("InsertTimeEntry: %v", err)
			}

			if err := store.DeleteCaregiver(ctx, "c1"); err != nil {
				t.Fatalf("DeleteCaregiver: %v", err)
			}
			if _, err := store.FindTimeEntry(ctx, id); !errors.Is(err, core.ErrEntryNotFound) {
				t.Errorf("entry after cascade = %v, want ErrEntryNotFound", err)
			}
		})
	}
}

func TestReplaceAllPreservesIDs(t *testing.T) {
	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Pre-existing data that restore must wipe.
			if err := store.InsertCaregiver(ctx, testCaregiver("old", "Old Row")); err != nil {
				t.Fatalf("InsertCaregiver: %v", err)
			}

			caregiver := testCaregiver("c1", "Maria Chen")
			entry := testEntry("c1", in, &out)
			entry.ID = 42
			entry.Notes = "Regular shift"

			if err := store.ReplaceAll(ctx, []core.Caregiver{caregiver}, []core.TimeEntry{entry}); err != nil {
				t.Fatalf("ReplaceAll: %v", err)
			}

			all, err := store.ListAllCaregivers(ctx)
			if err != nil {
				t.Fatalf("ListAllCaregivers: %v", err)
			}
			if len(all) != 1 || all[0].ID != "c1" {
				t.Fatalf("caregivers after restore = %+v, want just c1", all)
			}
			if !all[0].CreatedAt.Equal(caregiver.CreatedAt) {
				t.Errorf("CreatedAt = %v, want preserved %v", all[0].CreatedAt, caregiver.CreatedAt)
			}

			got, err := store.FindTimeEntry(ctx, 42)
			if err != nil {
				t.Fatalf("FindTimeEntry(42): %v", err)
			}
			if got.Notes != "Regular shift" || *got.TotalHours != 8.0 {
				t.Errorf("restored entry = %+v, want notes and hours preserved", got)
			}

			// New inserts must not collide with restored ids.
			newID, err := store.InsertTimeEntry(ctx, testEntry("c1", in.AddDate(0, 1, 0), nil))
			if err != nil {
				t.Fatalf("InsertTimeEntry after restore: %v", err)
			}
			if newID == 42 {
				t.Error("new entry id collides with restored id")
			}
		})
	}
}
