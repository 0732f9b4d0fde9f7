// Package backup serializes the whole dataset to a portable JSON
// snapshot and restores from one. Snapshots double as the export/import
// payload of the HTTP API and as the files the periodic backup worker
// writes.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caretrack/internal/core"
	"caretrack/internal/storage"
)

// SnapshotVersion is bumped when the snapshot layout changes.
const SnapshotVersion = "1.0"

// Snapshot is the full dataset at a point in time.
type Snapshot struct {
	Version          string           `json:"version"`
	Timestamp        time.Time        `json:"timestamp"`
	Caregivers       []core.Caregiver `json:"caregivers"`
	TimeEntries      []core.TimeEntry `json:"timeEntries"`
	TotalCaregivers  int              `json:"totalCaregivers"`
	TotalTimeEntries int              `json:"totalTimeEntries"`
}

// Export reads the entire dataset, inactive caregivers included, into a
// snapshot.
func Export(ctx context.Context, store storage.Store) (*Snapshot, error) {
	caregivers, err := store.ListAllCaregivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caregivers: %w", err)
	}

	var entries []core.TimeEntry
	for _, c := range caregivers {
		caregiverEntries, err := store.ListEntries(ctx, c.ID, core.Month{})
		if err != nil {
			return nil, fmt.Errorf("list entries for %s: %w", c.ID, err)
		}
		entries = append(entries, caregiverEntries...)
	}

	return &Snapshot{
		Version:          SnapshotVersion,
		Timestamp:        time.Now().UTC(),
		Caregivers:       caregivers,
		TimeEntries:      entries,
		TotalCaregivers:  len(caregivers),
		TotalTimeEntries: len(entries),
	}, nil
}

// Restore replaces the entire dataset with the snapshot's contents.
// The swap is atomic: a bad snapshot leaves the current data untouched.
func Restore(ctx context.Context, store storage.Store, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	if err := store.ReplaceAll(ctx, snap.Caregivers, snap.TimeEntries); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	return nil
}

// Validate checks the snapshot is internally consistent before it is
// allowed anywhere near ReplaceAll.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if s.Version == "" {
		return fmt.Errorf("snapshot has no version")
	}

	byID := make(map[string]bool, len(s.Caregivers))
	for i, c := range s.Caregivers {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("caregiver %d (%s): %w", i, c.ID, err)
		}
		if byID[c.ID] {
			return fmt.Errorf("duplicate caregiver id %s", c.ID)
		}
		byID[c.ID] = true
	}

	for i, e := range s.TimeEntries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("time entry %d: %w", i, err)
		}
		if !byID[e.CaregiverID] {
			return fmt.Errorf("time entry %d references unknown caregiver %s", i, e.CaregiverID)
		}
	}

	return nil
}

// Parse decodes a snapshot from JSON.
func Parse(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Encode renders the snapshot as indented JSON, the format served by
// the export endpoint and written to backup files.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
