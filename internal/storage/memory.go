package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"caretrack/internal/core"
)

// MemoryStore keeps the whole dataset in process memory. It backs tests and
// zero-setup trial runs; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	caregivers map[string]core.Caregiver
	entries    map[int64]core.TimeEntry
	nextID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		caregivers: make(map[string]core.Caregiver),
		entries:    make(map[int64]core.TimeEntry),
		nextID:     1,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) FindCaregiver(_ context.Context, id string) (core.Caregiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.caregivers[id]
	if !ok {
		return core.Caregiver{}, core.ErrCaregiverNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListActiveCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.list(func(c core.Caregiver) bool { return c.IsActive }), nil
}

func (s *MemoryStore) ListAllCaregivers(ctx context.Context) ([]core.Caregiver, error) {
	return s.list(func(core.Caregiver) bool { return true }), nil
}

func (s *MemoryStore) list(keep func(core.Caregiver) bool) []core.Caregiver {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var caregivers []core.Caregiver
	for _, c := range s.caregivers {
		if keep(c) {
			caregivers = append(caregivers, c)
		}
	}
	sort.Slice(caregivers, func(i, j int) bool {
		return caregivers[i].EnglishName < caregivers[j].EnglishName
	})
	return caregivers
}

func (s *MemoryStore) InsertCaregiver(_ context.Context, c core.Caregiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caregivers[c.ID] = c
	return nil
}

func (s *MemoryStore) UpdateCaregiver(_ context.Context, c core.Caregiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caregivers[c.ID]; !ok {
		return core.ErrCaregiverNotFound
	}
	s.caregivers[c.ID] = c
	return nil
}

func (s *MemoryStore) DeactivateCaregiver(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.caregivers[id]
	if !ok {
		return core.ErrCaregiverNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	s.caregivers[id] = c
	return nil
}

func (s *MemoryStore) DeleteCaregiver(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caregivers[id]; !ok {
		return core.ErrCaregiverNotFound
	}
	delete(s.caregivers, id)
	for entryID, e := range s.entries {
		if e.CaregiverID == id {
			delete(s.entries, entryID)
		}
	}
	return nil
}

func (s *MemoryStore) InsertTimeEntry(_ context.Context, e core.TimeEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Open() {
		for _, existing := range s.entries {
			if existing.CaregiverID == e.CaregiverID && existing.Open() {
				return 0, core.ErrAlreadyClockedIn
			}
		}
	}

	e.ID = s.nextID
	s.nextID++
	s.entries[e.ID] = e
	return e.ID, nil
}

func (s *MemoryStore) UpdateTimeEntry(_ context.Context, e core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[e.ID]; !ok {
		return core.ErrEntryNotFound
	}
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryStore) FindTimeEntry(_ context.Context, id int64) (core.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return core.TimeEntry{}, core.ErrEntryNotFound
	}
	return e, nil
}

func (s *MemoryStore) FindOpenEntry(_ context.Context, caregiverID string) (core.TimeEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  core.TimeEntry
		found bool
	)
	for _, e := range s.entries {
		if e.CaregiverID != caregiverID || !e.Open() {
			continue
		}
		if !found || e.ClockIn.After(best.ClockIn) {
			best = e
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, caregiverID string, month core.Month) ([]core.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []core.TimeEntry
	for _, e := range s.entries {
		if e.CaregiverID != caregiverID {
			continue
		}
		if !month.IsZero() && !month.Contains(e.ClockIn.UTC()) {
			continue
		}
		entries = append(entries, e)
	}
	sortEntriesDesc(entries)
	return entries, nil
}

func (s *MemoryStore) ListAllEntries(_ context.Context, month core.Month) ([]EntryWithNames, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []EntryWithNames
	for _, e := range s.entries {
		c, ok := s.caregivers[e.CaregiverID]
		if !ok || !c.IsActive {
			continue
		}
		if !month.IsZero() && !month.Contains(e.ClockIn.UTC()) {
			continue
		}
		entries = append(entries, EntryWithNames{
			TimeEntry:   e,
			EnglishName: c.EnglishName,
			ChineseName: c.ChineseName,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ClockIn.After(entries[j].ClockIn)
	})
	return entries, nil
}

func (s *MemoryStore) DeleteTimeEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return core.ErrEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) ReplaceAll(_ context.Context, caregivers []core.Caregiver, entries []core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.caregivers = make(map[string]core.Caregiver, len(caregivers))
	s.entries = make(map[int64]core.TimeEntry, len(entries))
	s.nextID = 1

	for _, c := range caregivers {
		s.caregivers[c.ID] = c
	}
	for _, e := range entries {
		s.entries[e.ID] = e
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return nil
}

func sortEntriesDesc(entries []core.TimeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ClockIn.After(entries[j].ClockIn)
	})
}
