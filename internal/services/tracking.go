// Package services holds the application logic between the HTTP handlers
// and the storage backends: the clock-in/out engine and the caregiver
// registry.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"caretrack/internal/amqp"
	"caretrack/internal/core"
	"caretrack/internal/storage"
)

// ClockPublisher is the slice of the AMQP client the tracking service
// needs. Nil means event publishing is disabled.
type ClockPublisher interface {
	PublishClockEvent(ctx context.Context, msg *amqp.ClockEventMessage) error
}

// TrackingService runs the clock-in/out engine. A per-caregiver lock
// serializes clock operations so two concurrent clock-ins for the same
// caregiver cannot both observe "no open entry"; the storage layer's
// unique open-entry constraint backstops it across processes.
type TrackingService struct {
	store     storage.Store
	publisher ClockPublisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTrackingService(store storage.Store, publisher ClockPublisher) *TrackingService {
	return &TrackingService{
		store:     store,
		publisher: publisher,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *TrackingService) caregiverLock(caregiverID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[caregiverID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[caregiverID] = l
	}
	return l
}

// ClockIn opens a new time entry for the caregiver at the given instant.
// A zero at means now. Notes are attached to the entry as provided.
func (s *TrackingService) ClockIn(ctx context.Context, caregiverID string, at time.Time, notes string) (core.TimeEntry, error) {
	caregiver, err := s.store.FindCaregiver(ctx, caregiverID)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if !caregiver.IsActive {
		return core.TimeEntry{}, core.ErrCaregiverNotFound
	}

	lock := s.caregiverLock(caregiverID)
	lock.Lock()
	defer lock.Unlock()

	if _, open, err := s.store.FindOpenEntry(ctx, caregiverID); err != nil {
		return core.TimeEntry{}, fmt.Errorf("check open entry: %w", err)
	} else if open {
		return core.TimeEntry{}, core.ErrAlreadyClockedIn
	}

	now := time.Now().UTC()
	if at.IsZero() {
		at = now
	}

	entry := core.TimeEntry{
		CaregiverID: caregiverID,
		ClockIn:     at.UTC(),
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := entry.Validate(); err != nil {
		return core.TimeEntry{}, err
	}

	id, err := s.store.InsertTimeEntry(ctx, entry)
	if err != nil {
		return core.TimeEntry{}, err
	}
	entry.ID = id

	s.publishEvent(ctx, amqp.NewClockInMessage(id, caregiverID, entry.ClockIn))

	slog.InfoContext(ctx, "Caregiver clocked in",
		"caregiver_id", caregiverID, "entry_id", id, "at", entry.ClockIn)

	return entry, nil
}

// ClockOut closes the entry and derives its total hours. A zero at means
// now. The clock-out instant must be strictly after the clock-in.
func (s *TrackingService) ClockOut(ctx context.Context, entryID int64, at time.Time, notes *string) (core.TimeEntry, error) {
	entry, err := s.store.FindTimeEntry(ctx, entryID)
	if err != nil {
		return core.TimeEntry{}, err
	}

	lock := s.caregiverLock(entry.CaregiverID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock, a concurrent clock-out may have won.
	entry, err = s.store.FindTimeEntry(ctx, entryID)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if !entry.Open() {
		return core.TimeEntry{}, core.ErrNotClockedIn
	}

	now := time.Now().UTC()
	if at.IsZero() {
		at = now
	}
	at = at.UTC()
	if !at.After(entry.ClockIn) {
		return core.TimeEntry{}, core.ErrInvalidInterval
	}

	entry.ClockOut = &at
	entry.ComputeTotalHours()
	if notes != nil {
		entry.Notes = *notes
	}
	entry.UpdatedAt = now

	if err := s.store.UpdateTimeEntry(ctx, entry); err != nil {
		return core.TimeEntry{}, err
	}

	s.publishEvent(ctx, amqp.NewClockOutMessage(entry.ID, entry.CaregiverID, at, *entry.TotalHours))

	slog.InfoContext(ctx, "Caregiver clocked out",
		"caregiver_id", entry.CaregiverID, "entry_id", entry.ID, "total_hours", *entry.TotalHours)

	return entry, nil
}

// OpenEntry returns the caregiver's in-progress entry, if any.
func (s *TrackingService) OpenEntry(ctx context.Context, caregiverID string) (core.TimeEntry, bool, error) {
	if _, err := s.store.FindCaregiver(ctx, caregiverID); err != nil {
		return core.TimeEntry{}, false, err
	}
	return s.store.FindOpenEntry(ctx, caregiverID)
}

// CreateEntry records a manual entry, typically a past shift entered
// after the fact. Completed intervals are validated; an entry without a
// clock-out behaves exactly like a clock-in.
func (s *TrackingService) CreateEntry(ctx context.Context, entry core.TimeEntry) (core.TimeEntry, error) {
	caregiver, err := s.store.FindCaregiver(ctx, entry.CaregiverID)
	if err != nil {
		return core.TimeEntry{}, err
	}
	if !caregiver.IsActive {
		return core.TimeEntry{}, core.ErrCaregiverNotFound
	}

	now := time.Now().UTC()
	entry.ClockIn = entry.ClockIn.UTC()
	if entry.ClockOut != nil {
		out := entry.ClockOut.UTC()
		entry.ClockOut = &out
	}
	entry.ComputeTotalHours()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if err := entry.Validate(); err != nil {
		return core.TimeEntry{}, err
	}

	if entry.Open() {
		lock := s.caregiverLock(entry.CaregiverID)
		lock.Lock()
		defer lock.Unlock()

		if _, open, err := s.store.FindOpenEntry(ctx, entry.CaregiverID); err != nil {
			return core.TimeEntry{}, fmt.Errorf("check open entry: %w", err)
		} else if open {
			return core.TimeEntry{}, core.ErrAlreadyClockedIn
		}
	}

	id, err := s.store.InsertTimeEntry(ctx, entry)
	if err != nil {
		return core.TimeEntry{}, err
	}
	entry.ID = id
	return entry, nil
}

// UpdateEntry rewrites an entry's interval and notes, re-deriving the
// total hours.
func (s *TrackingService) UpdateEntry(ctx context.Context, entry core.TimeEntry) (core.TimeEntry, error) {
	existing, err := s.store.FindTimeEntry(ctx, entry.ID)
	if err != nil {
		return core.TimeEntry{}, err
	}

	existing.ClockIn = entry.ClockIn.UTC()
	existing.ClockOut = nil
	if entry.ClockOut != nil {
		out := entry.ClockOut.UTC()
		existing.ClockOut = &out
	}
	existing.Notes = entry.Notes
	existing.ComputeTotalHours()
	existing.UpdatedAt = time.Now().UTC()

	if err := existing.Validate(); err != nil {
		return core.TimeEntry{}, err
	}
	if err := s.store.UpdateTimeEntry(ctx, existing); err != nil {
		return core.TimeEntry{}, err
	}
	return existing, nil
}

func (s *TrackingService) DeleteEntry(ctx context.Context, entryID int64) error {
	return s.store.DeleteTimeEntry(ctx, entryID)
}

// Entries lists a caregiver's entries, newest first, optionally filtered
// to the month their clock-in falls in.
func (s *TrackingService) Entries(ctx context.Context, caregiverID string, month core.Month) ([]core.TimeEntry, error) {
	return s.store.ListEntries(ctx, caregiverID, month)
}

// AllEntries lists every active caregiver's entries with names joined in.
func (s *TrackingService) AllEntries(ctx context.Context, month core.Month) ([]storage.EntryWithNames, error) {
	return s.store.ListAllEntries(ctx, month)
}

func (s *TrackingService) publishEvent(ctx context.Context, msg *amqp.ClockEventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishClockEvent(ctx, msg); err != nil {
		// Events are best effort, a broker outage never fails a shift.
		slog.WarnContext(ctx, "Failed to publish clock event",
			"entry_id", msg.EntryID, "kind", msg.Kind, "error", err)
	}
}
