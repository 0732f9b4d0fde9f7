package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"caretrack/internal/amqp"
	"caretrack/internal/core"
	"caretrack/internal/storage"
)

type recordingPublisher struct {
	events []*amqp.ClockEventMessage
	err    error
}

func (p *recordingPublisher) PublishClockEvent(_ context.Context, msg *amqp.ClockEventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, msg)
	return nil
}

func newTestStore(t *testing.T, caregivers ...core.Caregiver) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, c := range caregivers {
		if err := store.InsertCaregiver(context.Background(), c); err != nil {
			t.Fatalf("InsertCaregiver: %v", err)
		}
	}
	return store
}

func activeCaregiver(id string) core.Caregiver {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Caregiver{
		ID:           id,
		EnglishName:  "Maria Chen",
		ChineseName:  "陈玛丽",
		MonthlyHours: 160,
		HourlyRate:   decimal.NewFromFloat(25.00),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestClockInAndOut(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	pub := &recordingPublisher{}
	svc := NewTrackingService(store, pub)
	ctx := context.Background()

	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	entry, err := svc.ClockIn(ctx, "c1", in, "Morning shift")
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	if !entry.Open() {
		t.Error("entry should be open after clock in")
	}
	if entry.Notes != "Morning shift" {
		t.Errorf("Notes = %q", entry.Notes)
	}

	out := in.Add(8 * time.Hour)
	closed, err := svc.ClockOut(ctx, entry.ID, out, nil)
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if closed.TotalHours == nil || *closed.TotalHours != 8.0 {
		t.Errorf("TotalHours = %v, want 8.0", closed.TotalHours)
	}

	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	if pub.events[0].Kind != amqp.KindClockIn || pub.events[1].Kind != amqp.KindClockOut {
		t.Errorf("event kinds = [%s %s]", pub.events[0].Kind, pub.events[1].Kind)
	}
	if pub.events[1].TotalHours == nil || *pub.events[1].TotalHours != 8.0 {
		t.Errorf("clock-out event hours = %v, want 8.0", pub.events[1].TotalHours)
	}
}

func TestClockInRejectsSecondOpenEntry(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "c1", time.Time{}, ""); err != nil {
		t.Fatalf("first ClockIn: %v", err)
	}
	if _, err := svc.ClockIn(ctx, "c1", time.Time{}, ""); !errors.Is(err, core.ErrAlreadyClockedIn) {
		t.Errorf("second ClockIn = %v, want ErrAlreadyClockedIn", err)
	}
}

func TestClockInUnknownOrInactiveCaregiver(t *testing.T) {
	inactive := activeCaregiver("c2")
	inactive.IsActive = false
	store := newTestStore(t, inactive)
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	if _, err := svc.ClockIn(ctx, "nope", time.Time{}, ""); !errors.Is(err, core.ErrCaregiverNotFound) {
		t.Errorf("unknown caregiver = %v, want ErrCaregiverNotFound", err)
	}
	if _, err := svc.ClockIn(ctx, "c2", time.Time{}, ""); !errors.Is(err, core.ErrCaregiverNotFound) {
		t.Errorf("inactive caregiver = %v, want ErrCaregiverNotFound", err)
	}
}

func TestClockOutValidation(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	entry, err := svc.ClockIn(ctx, "c1", in, "")
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	if _, err := svc.ClockOut(ctx, 999, time.Time{}, nil); !errors.Is(err, core.ErrEntryNotFound) {
		t.Errorf("unknown entry = %v, want ErrEntryNotFound", err)
	}
	if _, err := svc.ClockOut(ctx, entry.ID, in, nil); !errors.Is(err, core.ErrInvalidInterval) {
		t.Errorf("clock out at clock in = %v, want ErrInvalidInterval", err)
	}
	if _, err := svc.ClockOut(ctx, entry.ID, in.Add(-time.Hour), nil); !errors.Is(err, core.ErrInvalidInterval) {
		t.Errorf("clock out before clock in = %v, want ErrInvalidInterval", err)
	}

	if _, err := svc.ClockOut(ctx, entry.ID, in.Add(time.Hour), nil); err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if _, err := svc.ClockOut(ctx, entry.ID, in.Add(2*time.Hour), nil); !errors.Is(err, core.ErrNotClockedIn) {
		t.Errorf("double clock out = %v, want ErrNotClockedIn", err)
	}
}

func TestClockOutUpdatesNotes(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	entry, err := svc.ClockIn(ctx, "c1", in, "start")
	if err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	notes := "covered the evening round"
	closed, err := svc.ClockOut(ctx, entry.ID, in.Add(4*time.Hour), &notes)
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if closed.Notes != notes {
		t.Errorf("Notes = %q, want %q", closed.Notes, notes)
	}
}

func TestConcurrentClockInSingleWinner(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)

	var g errgroup.Group
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = svc.ClockIn(context.Background(), "c1", time.Time{}, "")
			return nil
		})
	}
	g.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, core.ErrAlreadyClockedIn):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("concurrent clock-ins won %d times, want exactly 1", wins)
	}
}

func TestPublishFailureDoesNotFailClockIn(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTrackingService(store, pub)

	if _, err := svc.ClockIn(context.Background(), "c1", time.Time{}, ""); err != nil {
		t.Fatalf("ClockIn with failing publisher = %v, want nil", err)
	}
}

func TestCreateEntryManual(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(90 * time.Minute)
	entry, err := svc.CreateEntry(ctx, core.TimeEntry{
		CaregiverID: "c1",
		ClockIn:     in,
		ClockOut:    &out,
		Notes:       "entered after the fact",
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if entry.TotalHours == nil || *entry.TotalHours != 1.5 {
		t.Errorf("TotalHours = %v, want 1.5", entry.TotalHours)
	}

	// A manual entry with a reversed interval is rejected.
	bad := in.Add(-time.Hour)
	_, err = svc.CreateEntry(ctx, core.TimeEntry{CaregiverID: "c1", ClockIn: in, ClockOut: &bad})
	if !errors.Is(err, core.ErrInvalidInterval) {
		t.Errorf("reversed interval = %v, want ErrInvalidInterval", err)
	}

	// A manual open entry counts as a clock-in.
	if _, err := svc.CreateEntry(ctx, core.TimeEntry{CaregiverID: "c1", ClockIn: in}); err != nil {
		t.Fatalf("open manual entry: %v", err)
	}
	_, err = svc.CreateEntry(ctx, core.TimeEntry{CaregiverID: "c1", ClockIn: in.Add(time.Hour)})
	if !errors.Is(err, core.ErrAlreadyClockedIn) {
		t.Errorf("second open manual entry = %v, want ErrAlreadyClockedIn", err)
	}
}

func TestUpdateEntryRederivesHours(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	in := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	out := in.Add(8 * time.Hour)
	entry, err := svc.CreateEntry(ctx, core.TimeEntry{CaregiverID: "c1", ClockIn: in, ClockOut: &out})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	newOut := in.Add(6 * time.Hour)
	updated, err := svc.UpdateEntry(ctx, core.TimeEntry{
		ID:       entry.ID,
		ClockIn:  in,
		ClockOut: &newOut,
		Notes:    "corrected",
	})
	if err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if updated.TotalHours == nil || *updated.TotalHours != 6.0 {
		t.Errorf("TotalHours = %v, want 6.0", updated.TotalHours)
	}
	if updated.Notes != "corrected" {
		t.Errorf("Notes = %q", updated.Notes)
	}

	// Removing the clock-out reopens the entry and clears the hours.
	reopened, err := svc.UpdateEntry(ctx, core.TimeEntry{ID: entry.ID, ClockIn: in})
	if err != nil {
		t.Fatalf("UpdateEntry reopen: %v", err)
	}
	if !reopened.Open() || reopened.TotalHours != nil {
		t.Errorf("reopened = %+v, want open with nil hours", reopened)
	}
}

func TestOpenEntry(t *testing.T) {
	store := newTestStore(t, activeCaregiver("c1"))
	svc := NewTrackingService(store, nil)
	ctx := context.Background()

	if _, _, err := svc.OpenEntry(ctx, "nope"); !errors.Is(err, core.ErrCaregiverNotFound) {
		t.Errorf("OpenEntry unknown caregiver = %v, want ErrCaregiverNotFound", err)
	}

	_, found, err := svc.OpenEntry(ctx, "c1")
	if err != nil {
		t.Fatalf("OpenEntry: %v", err)
	}
	if found {
		t.Error("no open entry expected before clock in")
	}

	if _, err := svc.ClockIn(ctx, "c1", time.Time{}, ""); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	_, found, err = svc.OpenEntry(ctx, "c1")
	if err != nil || !found {
		t.Errorf("OpenEntry after clock in = (%v, %v), want open entry", found, err)
	}
}
